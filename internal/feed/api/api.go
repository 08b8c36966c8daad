// Package api reads transactions and the family directory from the REST API.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
)

const (
	transactionsPath       = "/api/transactions/"
	familyTransactionsPath = "/api/family-transactions/"
	profilePath            = "/api/users/profile/"
	familyMembersPath      = "/api/family-members/"

	// maxPages bounds pagination so a misbehaving server cannot loop forever.
	maxPages = 100
)

// Ensure interface conformance
var (
	_ feed.TransactionSource = (*Client)(nil)
	_ feed.Directory         = (*Client)(nil)
	_ feed.Authenticator     = (*Client)(nil)
)

// Client is the API-backed feed.
type Client struct {
	remote *remote.Client
}

// New wraps an API transport.
func New(rc *remote.Client) *Client {
	return &Client{remote: rc}
}

// FetchTransactions fetches the personal or family feed and applies f.
func (c *Client) FetchTransactions(ctx context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	path := transactionsPath
	if f.Scope == feed.Family {
		path = familyTransactionsPath
	}

	body, err := c.remote.Get(ctx, token, path, f.Query())
	if err != nil {
		return nil, err
	}
	var all []core.Transaction
	for page := 1; ; page++ {
		txs, next, err := feed.DecodeTransactions(body)
		if err != nil {
			return nil, &remote.NetworkError{Op: "GET", URL: path, Err: err}
		}
		all = append(all, txs...)
		if next == "" {
			break
		}
		if page >= maxPages {
			slog.WarnContext(ctx, "Transaction feed pagination truncated", "path", path, "pages", page)
			break
		}
		if body, err = c.remote.GetURL(ctx, token, next); err != nil {
			return nil, err
		}
	}

	// The API may ignore unknown query params.
	return f.Apply(all), nil
}

// FetchProfile returns the signed-in user.
func (c *Client) FetchProfile(ctx context.Context, token string) (core.Profile, error) {
	body, err := c.remote.Get(ctx, token, profilePath, nil)
	if err != nil {
		return core.Profile{}, err
	}
	p, err := feed.DecodeProfile(body)
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile: %w", err)
	}
	return p, nil
}

// FetchMembers returns the members of the user's family.
func (c *Client) FetchMembers(ctx context.Context, token string) ([]core.Member, error) {
	body, err := c.remote.Get(ctx, token, familyMembersPath, nil)
	if err != nil {
		return nil, err
	}
	return feed.DecodeMembers(body)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (remote.LoginResult, error) {
	return c.remote.Login(ctx, email, password)
}

// Register creates an account upstream.
func (c *Client) Register(ctx context.Context, reg remote.Registration) (remote.LoginResult, error) {
	return c.remote.Register(ctx, reg)
}
