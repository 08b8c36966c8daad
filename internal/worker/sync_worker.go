// Package worker mirrors remote transactions into the local SQLite store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetboard/internal/amqp"
	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
	"budgetboard/internal/storage"
)

// Config holds the worker settings
type Config struct {
	// Token authenticates the worker against the API.
	Token string
	// Interval between full syncs. Zero disables the periodic loop.
	Interval time.Duration
	// LookbackDays bounds a full sync and any request without a start date.
	LookbackDays int
}

// SyncWorker copies remote transactions into the mirror
type SyncWorker struct {
	source    feed.TransactionSource
	directory feed.Directory
	storage   *storage.SQLiteRepository
	config    Config
	now       func() time.Time

	// one sync at a time; the mirror has a single writer connection
	syncMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(source feed.TransactionSource, directory feed.Directory, storage *storage.SQLiteRepository, config Config) *SyncWorker {
	if config.LookbackDays <= 0 {
		config.LookbackDays = 400
	}
	return &SyncWorker{
		source:    source,
		directory: directory,
		storage:   storage,
		config:    config,
		now:       time.Now,
	}
}

// HandleSyncMessage processes one sync request from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.FeedSyncMessage) error {
	from, to, err := msg.Window()
	if err != nil {
		return err
	}
	scope := feed.Scope(msg.Scope)

	slog.InfoContext(ctx, "Processing sync message",
		"component", "worker",
		"id", msg.ID,
		"scope", scope,
		"from", msg.From,
		"to", msg.To,
		"requested_by", msg.RequestedBy)

	_, err = w.sync(ctx, msg.ID, scope, from, to)
	return err
}

// SyncAll mirrors the family feed over the lookback window.
func (w *SyncWorker) SyncAll(ctx context.Context) (storage.SyncRun, error) {
	return w.sync(ctx, uuid.NewString(), feed.Family, time.Time{}, time.Time{})
}

func (w *SyncWorker) sync(ctx context.Context, id string, scope feed.Scope, from, to time.Time) (storage.SyncRun, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	now := w.now()
	if from.IsZero() {
		from = now.AddDate(0, 0, -w.config.LookbackDays)
	}
	if to.IsZero() {
		to = now
	}

	run := storage.SyncRun{ID: id, Scope: string(scope), StartedAt: now}
	if err := w.storage.RecordSyncRun(ctx, run); err != nil {
		return run, err
	}

	fetched, stored, err := w.mirror(ctx, scope, from, to)
	run.Fetched, run.Stored, run.FinishedAt = fetched, stored, w.now()
	if err != nil {
		run.Error = err.Error()
	}
	if recErr := w.storage.RecordSyncRun(ctx, run); recErr != nil {
		slog.ErrorContext(ctx, "Failed to record sync run", "component", "worker", "id", id, "error", recErr)
	}
	if err != nil {
		return run, err
	}

	slog.InfoContext(ctx, "Mirror sync completed",
		"component", "worker",
		"id", id,
		"scope", scope,
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"fetched", fetched,
		"stored", stored,
		"duration", run.FinishedAt.Sub(run.StartedAt).String())
	return run, nil
}

func (w *SyncWorker) mirror(ctx context.Context, scope feed.Scope, from, to time.Time) (int, int, error) {
	txs, err := w.source.FetchTransactions(ctx, w.config.Token, feed.Filter{Scope: scope, From: from, To: to})
	if err != nil {
		return 0, 0, fmt.Errorf("fetch transactions: %w", err)
	}

	familyID := ""
	if w.directory != nil {
		p, err := w.directory.FetchProfile(ctx, w.config.Token)
		switch {
		case err == nil:
			familyID = p.FamilyID
		case errors.Is(err, remote.ErrUnauthorized):
			return len(txs), 0, fmt.Errorf("fetch profile: %w", err)
		default:
			slog.WarnContext(ctx, "Profile unavailable, storing without family id", "component", "worker", "error", err)
		}
	}

	logMalformed(ctx, txs)

	stored, err := w.storage.UpsertTransactions(ctx, familyID, txs)
	if err != nil {
		return len(txs), stored, fmt.Errorf("store transactions: %w", err)
	}
	return len(txs), stored, nil
}

// logMalformed reports records the dashboard will reject. They are mirrored as received.
func logMalformed(ctx context.Context, txs []core.Transaction) {
	var ids []string
	for _, t := range txs {
		if _, err := t.Money(); err != nil {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) > 0 {
		slog.WarnContext(ctx, "Mirrored transactions with unusable amounts",
			"component", "worker",
			"error_type", "data_quality_error",
			"count", len(ids),
			"ids", ids)
	}
}

// Start runs an initial full sync and then one per interval, until Stop or ctx ends.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started",
		"component", "worker",
		"interval", w.config.Interval,
		"lookback_days", w.config.LookbackDays)
	return nil
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	w.runOnce(ctx)
	if w.config.Interval <= 0 {
		<-w.stopOrDone(ctx)
		return
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) stopOrDone(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		select {
		case <-w.stopCh:
		case <-ctx.Done():
		}
	}()
	return ch
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	if _, err := w.SyncAll(ctx); err != nil {
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "Periodic sync failed", "component", "worker", "error", err)
	}
}

// Stop halts the periodic loop and waits for the current sync to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Sync worker stopped gracefully", "component", "worker")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out", "component", "worker")
		return ctx.Err()
	}
}

// IsRunning reports whether the periodic loop is active
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
