// Package feed defines the transaction feed ports and the shared wire format.
//
// A feed returns raw transactions for an explicit auth token. It does no
// aggregation, retries or caching; errors surface unchanged to the caller.
package feed

import (
	"context"
	"net/url"
	"time"

	"budgetboard/internal/aggregate"
	"budgetboard/internal/core"
	"budgetboard/internal/remote"
)

// Scope selects whose transactions are fetched.
type Scope string

const (
	Personal Scope = "personal"
	Family   Scope = "family"
)

// Filter narrows a fetch. Zero values mean "no constraint".
type Filter struct {
	Scope Scope
	From  time.Time // inclusive, by calendar day
	To    time.Time // inclusive, by calendar day
	Owner string
}

// Match reports whether t satisfies the date and owner constraints.
func (f Filter) Match(t core.Transaction) bool {
	return aggregate.And(aggregate.Between(f.From, f.To), aggregate.OwnedBy(f.Owner))(t)
}

// Apply returns the transactions matching f.
func (f Filter) Apply(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Query renders the filter as API query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if !f.From.IsZero() {
		q.Set("date_from", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		q.Set("date_to", f.To.Format("2006-01-02"))
	}
	if f.Owner != "" {
		q.Set("user", f.Owner)
	}
	return q
}

// Ports for outbound adapters.
type (
	// TransactionSource fetches raw transactions.
	TransactionSource interface {
		FetchTransactions(ctx context.Context, token string, f Filter) ([]core.Transaction, error)
	}

	// Directory resolves the signed-in user and their family.
	Directory interface {
		FetchProfile(ctx context.Context, token string) (core.Profile, error)
		FetchMembers(ctx context.Context, token string) ([]core.Member, error)
	}

	// Authenticator exchanges credentials for a token and signs up new users.
	Authenticator interface {
		Login(ctx context.Context, email, password string) (remote.LoginResult, error)
		Register(ctx context.Context, reg remote.Registration) (remote.LoginResult, error)
	}
)
