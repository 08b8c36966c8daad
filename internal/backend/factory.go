package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetboard/internal/adapters"
	"budgetboard/internal/amqp"
	"budgetboard/internal/feed/api"
	"budgetboard/internal/feed/google"
	"budgetboard/internal/feed/memory"
	"budgetboard/internal/insights"
	"budgetboard/internal/remote"
	"budgetboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// remoteBackend wires sign-in, the directory and insights to the remote API.
func (f *DefaultFactory) remoteBackend(config Config) (*Backend, error) {
	var opts []remote.Option
	if config.APITimeout > 0 {
		opts = append(opts, remote.WithTimeout(config.APITimeout))
	}
	if config.APIAuthScheme != "" {
		opts = append(opts, remote.WithAuthScheme(config.APIAuthScheme))
	}
	rc, err := remote.NewClient(config.APIBaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}
	feedClient := api.New(rc)
	return &Backend{
		Transactions:  feedClient,
		Directory:     feedClient,
		Authenticator: feedClient,
		Insights:      insights.New(rc),
		Ready:         func(context.Context) error { return nil },
	}, nil
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	b, err := f.remoteBackend(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized API backend", "api_base_url", config.APIBaseURL)

	return &BackendResult{Backend: b}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	b, err := f.remoteBackend(config)
	if err != nil {
		return nil, err
	}

	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	b.Transactions = adapters.NewSQLiteAdapter(sqliteRepo)
	b.Ready = sqliteRepo.Ping

	// AMQP is optional; without it refreshes only drop cached insights
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			b.Publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", b.Publisher != nil)

	publisher := b.Publisher
	return &BackendResult{
		Backend: b,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, sqliteRepo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	b, err := f.remoteBackend(config)
	if err != nil {
		return nil, err
	}

	cli, err := google.New(ctx, google.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	b.Transactions = cli

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Backend: b,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.MemorySeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory seed: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.MemorySeedFile)

	return &BackendResult{
		Backend: &Backend{
			Transactions:  store,
			Directory:     store,
			Authenticator: store,
			Ready:         func(context.Context) error { return nil },
		},
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}
