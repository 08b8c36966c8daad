package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetboard/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the local transaction mirror.
type SQLiteRepository struct {
	db *sql.DB
}

// Query narrows ListTransactions. Zero values mean "no constraint".
type Query struct {
	From  time.Time
	To    time.Time
	Owner string
}

// SyncRun records one mirror refresh.
type SyncRun struct {
	ID         string
	Scope      string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Stored     int
	Error      string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps writers serialized and makes :memory: usable.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateMirror(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Mirror schema ready", "component", "storage", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertTransactions stores txs, replacing rows with the same id. Amounts are
// stored verbatim.
func (r *SQLiteRepository) UpsertTransactions(ctx context.Context, familyID string, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, family_id, owner, owner_id, type, category, amount, date, description, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			owner = excluded.owner,
			owner_id = excluded.owner_id,
			type = excluded.type,
			category = excluded.category,
			amount = excluded.amount,
			date = excluded.date,
			description = excluded.description,
			synced_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, t := range txs {
		if strings.TrimSpace(t.ID) == "" {
			continue
		}
		date := ""
		if !t.Date.IsZero() {
			date = t.Date.Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, familyID, t.Owner, t.OwnerID, string(t.Type),
			t.Category, string(t.Amount), date, t.Description); err != nil {
			return 0, fmt.Errorf("upsert transaction %s: %w", t.ID, err)
		}
		stored++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transactions mirrored to SQLite", "stored", stored, "family_id", familyID)
	return stored, nil
}

// ListTransactions returns mirrored transactions ordered by date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, q Query) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		// Dates are stored as RFC3339, so compare against the next day.
		where = append(where, "date < ?")
		args = append(args, q.To.AddDate(0, 0, 1).Format("2006-01-02"))
	}
	if q.Owner != "" {
		where = append(where, "owner = ? COLLATE NOCASE")
		args = append(args, q.Owner)
	}
	query := `SELECT id, owner, owner_id, type, category, amount, date, description FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                 core.Transaction
			typ, amount, date string
		)
		if err := rows.Scan(&t.ID, &t.Owner, &t.OwnerID, &typ, &t.Category, &amount, &date, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.Amount = core.RawAmount(amount)
		if d, err := core.ParseDate(date); err == nil {
			t.Date = d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions returns the number of mirrored rows.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// RecordSyncRun stores the outcome of a mirror refresh.
func (r *SQLiteRepository) RecordSyncRun(ctx context.Context, run SyncRun) error {
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, scope, started_at, finished_at, fetched, stored, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			fetched = excluded.fetched,
			stored = excluded.stored,
			error = excluded.error`,
		run.ID, run.Scope, run.StartedAt.UTC(), finished, run.Fetched, run.Stored, run.Error)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// LastSyncRun returns the most recent successful run.
func (r *SQLiteRepository) LastSyncRun(ctx context.Context) (SyncRun, bool, error) {
	var (
		run      SyncRun
		finished sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, scope, started_at, finished_at, fetched, stored, error
		FROM sync_runs WHERE error = '' AND finished_at IS NOT NULL
		ORDER BY started_at DESC LIMIT 1`).
		Scan(&run.ID, &run.Scope, &run.StartedAt, &finished, &run.Fetched, &run.Stored, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRun{}, false, nil
	}
	if err != nil {
		return SyncRun{}, false, fmt.Errorf("last sync run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return run, true, nil
}
