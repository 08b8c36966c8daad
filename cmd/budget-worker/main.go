package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetboard/internal/amqp"
	"budgetboard/internal/backend"
	"budgetboard/internal/cli"
	"budgetboard/internal/log"
	"budgetboard/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()
	cli.MustValidate(logger, cfg.Validate)
	cli.MustValidate(logger, cfg.ValidateWorker)

	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting budget-worker", log.FieldOperation, log.OpStartup)

	// the mirror is always filled from the remote API, whatever the dashboard reads
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.Type = backend.APIBackend
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize API client", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	syncWorker := worker.NewSyncWorker(res.Backend.Transactions, res.Backend.Directory, repo, worker.Config{
		Token:        cfg.SyncAPIToken,
		Interval:     cfg.SyncInterval,
		LookbackDays: cfg.SyncLookbackDays,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled, running periodic syncs only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Error("Sync worker stop error", log.FieldError, err)
		}
	})

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeFeedSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	logger.Info("Worker running",
		"interval", cfg.SyncInterval,
		"lookback_days", cfg.SyncLookbackDays,
		"amqp_enabled", amqpClient != nil)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
