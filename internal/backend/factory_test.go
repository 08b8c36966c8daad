package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"budgetboard/internal/adapters"
	"budgetboard/internal/config"
	"budgetboard/internal/feed"
	"budgetboard/internal/feed/api"
	"budgetboard/internal/feed/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "sqlite",
		APIBaseURL:     "http://api.test",
		SQLiteDBPath:   "/tmp/x.db",
		MemorySeedFile: "seed.json",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.APIBaseURL != "http://api.test" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory needs nothing", Config{Type: MemoryBackend}, false},
		{"api needs base url", Config{Type: APIBackend}, true},
		{"api ok", Config{Type: APIBackend, APIBaseURL: "http://api.test"}, false},
		{"sqlite needs path", Config{Type: SQLiteBackend, APIBaseURL: "http://api.test"}, true},
		{"sheets needs spreadsheet", Config{Type: SheetsBackend, APIBaseURL: "http://api.test"}, true},
		{"invalid type", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	data := `{"family":"Rossi","transactions":[{"id":1,"amount":"10.00","type":"expense","category":"Food","date":"2024-03-01","username":"ann"}]}`
	if err := os.WriteFile(seed, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, MemorySeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	b := res.Backend
	if _, ok := b.Transactions.(*memory.Store); !ok {
		t.Errorf("transactions = %T", b.Transactions)
	}
	if b.Insights != nil || b.Publisher != nil {
		t.Error("memory backend has no insights or publisher")
	}
	txs, err := b.Transactions.FetchTransactions(context.Background(), "mem:ann", feed.Filter{Scope: feed.Personal})
	if err != nil || len(txs) != 1 {
		t.Errorf("fetch = %v, %v", txs, err)
	}
	if err := b.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}
}

func TestCreateAPIBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: APIBackend, APIBaseURL: "http://api.test"})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.Backend.Transactions.(*api.Client); !ok {
		t.Errorf("transactions = %T", res.Backend.Transactions)
	}
	if res.Backend.Insights == nil {
		t.Error("api backend should expose insights")
	}
	if res.Cleanup != nil {
		t.Error("api backend has nothing to clean up")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		APIBaseURL:   "http://api.test",
		SQLiteDBPath: filepath.Join(t.TempDir(), "mirror.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.Backend.Transactions.(*adapters.SQLiteAdapter); !ok {
		t.Errorf("transactions = %T", res.Backend.Transactions)
	}
	if _, ok := res.Backend.Authenticator.(*api.Client); !ok {
		t.Errorf("sign-in should go through the API, got %T", res.Backend.Authenticator)
	}
	if err := res.Backend.Ready(context.Background()); err != nil {
		t.Errorf("Ready: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
}
