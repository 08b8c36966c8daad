// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// dashboard query parameters and login or categorize bodies sent either as
// form fields or JSON.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetboard/internal/feed"
	"budgetboard/internal/services"
)

// maxBodyBytes bounds request bodies; the largest legitimate one is a login.
const maxBodyBytes = 64 << 10

// DashboardQuery holds the view parameters shared by the dashboard pages.
type DashboardQuery struct {
	Month    time.Time // zero means the current month
	Category string
	Member   string
	Mode     feed.Scope
}

// ErrInvalidMonth is returned for a month parameter that is not YYYY-MM.
var ErrInvalidMonth = errors.New("month must be YYYY-MM")

// ParseDashboardQuery extracts month, category, member and view mode from
// query parameters. Unknown modes fall back to personal.
func ParseDashboardQuery(query url.Values) (DashboardQuery, error) {
	q := DashboardQuery{
		Category: sanitizeInput(query.Get("category")),
		Member:   sanitizeInput(query.Get("member")),
		Mode:     feed.Personal,
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := services.ParseMonth(v)
		if err != nil {
			return q, ErrInvalidMonth
		}
		q.Month = m
	}
	if strings.EqualFold(strings.TrimSpace(query.Get("view")), string(feed.Family)) {
		q.Mode = feed.Family
	}
	return q, nil
}

// Values renders the query back to URL parameters, omitting defaults.
func (q DashboardQuery) Values() url.Values {
	v := url.Values{}
	if !q.Month.IsZero() {
		v.Set("month", q.Month.Format("2006-01"))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Member != "" {
		v.Set("member", q.Member)
	}
	if q.Mode == feed.Family {
		v.Set("view", string(feed.Family))
	}
	return v
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
