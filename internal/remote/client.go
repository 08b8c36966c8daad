// Package remote is the HTTP transport to the budget REST API.
//
// Every call takes the caller's auth token explicitly. The client holds no
// credentials of its own.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
	userAgent      = "budgetboard/1.0"
)

var (
	// ErrUnauthorized means the token is missing, expired or rejected. It is
	// terminal for the current view: the user has to sign in again.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("remote: rate limited")
	// ErrInvalidCredentials is returned by Login for a rejected email/password.
	ErrInvalidCredentials = errors.New("remote: invalid credentials")
)

// NetworkError reports a transport failure or a non-success response.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("remote: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Client talks to one API base URL.
type Client struct {
	baseURL *url.URL
	scheme  string
	timeout time.Duration
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAuthScheme sets the Authorization scheme, "Token" by default.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(scheme); s != "" {
			c.scheme = s
		}
	}
}

// NewClient creates a client for baseURL, e.g. "https://budget.example.com".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: base url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		scheme:  "Token",
		timeout: defaultTimeout,
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Get performs an authenticated GET of path with query params.
func (c *Client) Get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	return c.GetURL(ctx, token, c.resolve(path, query))
}

// GetURL performs an authenticated GET of an absolute URL, as returned in
// pagination links. URLs on another host are refused.
func (c *Client) GetURL(ctx context.Context, token, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{Op: http.MethodGet, URL: rawURL, Err: err}
	}
	if u.Host != "" && u.Host != c.baseURL.Host {
		return nil, &NetworkError{Op: http.MethodGet, URL: rawURL, Err: errors.New("foreign host")}
	}
	if u.Host == "" {
		u = c.baseURL.ResolveReference(u)
	}
	return c.do(ctx, token, http.MethodGet, u.String(), nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, token, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remote: encoding request: %w", err)
	}
	return c.do(ctx, token, http.MethodPost, c.resolve(path, nil), body)
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, token, method, target string, body []byte) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	return c.send(ctx, method, target, body, func(h http.Header) {
		h.Set("Authorization", c.scheme+" "+token)
	})
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, decorate func(http.Header)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("remote: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, &NetworkError{Op: method, URL: target, StatusCode: resp.StatusCode, Err: ErrRateLimited}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Op: method, URL: target, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, &NetworkError{
			Op:         method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return data, nil
}
