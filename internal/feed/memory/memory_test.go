package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
)

func TestLoginAndScopes(t *testing.T) {
	s := New("Rossi", nil, []core.Transaction{
		{ID: "1", Amount: "10", Type: core.Expense, Owner: "ann"},
		{ID: "2", Amount: "20", Type: core.Expense, Owner: "bob"},
	})
	ctx := context.Background()

	res, err := s.Login(ctx, "ann@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}

	mine, err := s.FetchTransactions(ctx, res.Token, feed.Filter{Scope: feed.Personal})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != "1" {
		t.Fatalf("personal scope = %+v", mine)
	}

	all, err := s.FetchTransactions(ctx, res.Token, feed.Filter{Scope: feed.Family})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("family scope = %+v", all)
	}

	members, err := s.FetchMembers(ctx, res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Username != "ann" {
		t.Fatalf("members = %+v", members)
	}

	p, err := s.FetchProfile(ctx, res.Token)
	if err != nil || p.Username != "ann" || p.Family != "Rossi" {
		t.Fatalf("profile = %+v, %v", p, err)
	}
}

func TestRejectsBadToken(t *testing.T) {
	s := New("", nil, nil)
	for _, tok := range []string{"", "mem:", "Token abc"} {
		if _, err := s.FetchTransactions(context.Background(), tok, feed.Filter{}); !errors.Is(err, remote.ErrUnauthorized) {
			t.Errorf("%q: expected ErrUnauthorized, got %v", tok, err)
		}
	}
	if _, err := s.Login(context.Background(), "ann@example.com", ""); !errors.Is(err, remote.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	seed := `{"family": "Rossi",
		"members": [{"username": "ann", "user_id": 1, "role": "parent"}, {"username": "kid", "user_id": 2, "role": "kid"}],
		"transactions": [{"id": 1, "amount": "12.50", "transaction_type": "expense", "category": {"category_name": "Food"}, "user": {"username": "kid"}}]}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.FetchProfile(context.Background(), "mem:kid")
	if err != nil || !p.IsKid() || p.ID != "2" {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	txs, err := s.FetchTransactions(context.Background(), "mem:kid", feed.Filter{})
	if err != nil || len(txs) != 1 || txs[0].Category != "Food" {
		t.Fatalf("txs = %+v, %v", txs, err)
	}

	missing, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil || missing == nil {
		t.Fatalf("missing seed should yield empty store, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	s := New("Rossi", nil, []core.Transaction{
		{ID: "1", Amount: "10", Type: core.Expense, Owner: "ann"},
	})
	ctx := context.Background()

	_, err := s.Register(ctx, remote.Registration{Username: "cat", Email: "cat@example.com", Password: "a", Password2: "b"})
	var fe remote.FieldErrors
	if !errors.As(err, &fe) || len(fe["password"]) != 1 {
		t.Fatalf("expected a password mismatch, got %v", err)
	}

	_, err = s.Register(ctx, remote.Registration{Username: "ANN", Email: "ann2@example.com", Password: "pw", Password2: "pw"})
	if !errors.Is(err, remote.ErrRegistrationRejected) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}

	res, err := s.Register(ctx, remote.Registration{Username: "cat", Email: "cat@example.com", Password: "pw", Password2: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if res.User.Role != remote.DefaultRole {
		t.Errorf("role = %q", res.User.Role)
	}

	members, err := s.FetchMembers(ctx, res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Username != "ann" || members[1].Username != "cat" {
		t.Errorf("members = %+v", members)
	}
	p, err := s.FetchProfile(ctx, res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != remote.DefaultRole {
		t.Errorf("profile role = %q", p.Role)
	}
}
