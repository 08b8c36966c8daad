package adapters

import (
	"context"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
	"budgetboard/internal/storage"
)

// Ensure interface conformance
var _ feed.TransactionSource = (*SQLiteAdapter)(nil)

// SQLiteAdapter serves the transaction feed from the local mirror. The mirror
// holds the whole family feed, so personal scope relies on f.Owner.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository) *SQLiteAdapter {
	return &SQLiteAdapter{storage: storage}
}

// FetchTransactions implements feed.TransactionSource
func (a *SQLiteAdapter) FetchTransactions(ctx context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	if strings.TrimSpace(token) == "" {
		return nil, remote.ErrUnauthorized
	}
	return a.storage.ListTransactions(ctx, storage.Query{From: f.From, To: f.To, Owner: f.Owner})
}
