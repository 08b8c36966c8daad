package backend

import (
	"context"
	"time"

	"budgetboard/internal/amqp"
	"budgetboard/internal/feed"
	"budgetboard/internal/insights"
)

// Backend bundles the ports the dashboard reads through
type Backend struct {
	Transactions  feed.TransactionSource
	Directory     feed.Directory
	Authenticator feed.Authenticator

	// Insights is nil when no insight service is reachable for this backend.
	Insights insights.Source
	// Publisher is nil unless AMQP is configured for the sqlite mirror.
	Publisher *amqp.Client
	// Ready reports whether the backing store can serve reads.
	Ready func(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Remote API, the authority for sign-in and the family directory
	APIBaseURL    string
	APITimeout    time.Duration
	APIAuthScheme string

	// SQLite mirror
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend seed
	MemorySeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// UsesAPI reports whether the backend signs in through the remote API.
func (bt BackendType) UsesAPI() bool {
	return bt != MemoryBackend
}
