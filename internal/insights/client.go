// Package insights fetches recommendations, anomalies, predictions and
// categorizations from the API's insight endpoints. Payloads are decoded into
// plain structs and passed through untouched.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"budgetboard/internal/remote"
)

const (
	analyzePath         = "/api/ai/analyze/"
	predictPath         = "/api/ai/predict/"
	recommendationsPath = "/api/ai/recommendations/"
	anomaliesPath       = "/api/ai/anomalies/"
	categorizePath      = "/api/ai/categorize/"

	DefaultThreshold   = 2.0
	DefaultMonthsAhead = 3
)

var ErrEmptyDescription = errors.New("insights: empty description")

// Client reads the insight endpoints.
type Client struct {
	remote *remote.Client
}

// New wraps an API transport.
func New(rc *remote.Client) *Client {
	return &Client{remote: rc}
}

// Recommendations fetches spending recommendations.
func (c *Client) Recommendations(ctx context.Context, token string) (Recommendations, error) {
	var out Recommendations
	err := c.getJSON(ctx, token, recommendationsPath, nil, &out)
	return out, err
}

// Anomalies fetches unusual transactions at the given z-score threshold.
func (c *Client) Anomalies(ctx context.Context, token string, threshold float64) (Anomalies, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	q := url.Values{"threshold": {strconv.FormatFloat(threshold, 'f', -1, 64)}}
	var out Anomalies
	err := c.getJSON(ctx, token, anomaliesPath, q, &out)
	return out, err
}

// Predictions fetches a forecast for monthsAhead months.
func (c *Client) Predictions(ctx context.Context, token string, monthsAhead int) (Predictions, error) {
	if monthsAhead <= 0 {
		monthsAhead = DefaultMonthsAhead
	}
	q := url.Values{"months_ahead": {strconv.Itoa(monthsAhead)}}
	var out Predictions
	err := c.getJSON(ctx, token, predictPath, q, &out)
	return out, err
}

// Analysis fetches the spending analysis.
func (c *Client) Analysis(ctx context.Context, token string) (Analysis, error) {
	var out Analysis
	err := c.getJSON(ctx, token, analyzePath, nil, &out)
	return out, err
}

// Categorize asks for a category suggestion for a description.
func (c *Client) Categorize(ctx context.Context, token, description string) (Categorization, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Categorization{}, ErrEmptyDescription
	}
	body, err := c.remote.Post(ctx, token, categorizePath, map[string]string{"description": description})
	if err != nil {
		return Categorization{}, err
	}
	var out Categorization
	if err := json.Unmarshal(body, &out); err != nil {
		return Categorization{}, fmt.Errorf("insights: parsing categorization: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, q url.Values, v any) error {
	body, err := c.remote.Get(ctx, token, path, q)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("insights: parsing %s: %w", path, err)
	}
	return nil
}
