package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetboard/internal/backend"
	"budgetboard/internal/cache"
	"budgetboard/internal/classify"
	"budgetboard/internal/cli"
	apphttp "budgetboard/internal/http"
	"budgetboard/internal/insights"
	"budgetboard/internal/log"
	"budgetboard/internal/services"
	"budgetboard/internal/session"
)

const (
	insightsCacheEntries = 2000
	cacheCleanupInterval = 5 * time.Minute
)

func main() {
	cfg, logger := cli.LoadConfig()
	cli.MustValidate(logger, cfg.Validate)

	logger.Info("Starting budgetboard", log.FieldOperation, log.OpStartup, log.FieldBackend, cfg.DataBackend)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	b := res.Backend

	classifier, err := classify.FromFile(cfg.ClassifierKeywordsFile)
	if err != nil {
		logger.Error("Failed to load classifier keywords", log.FieldError, err, "path", cfg.ClassifierKeywordsFile)
		os.Exit(1)
	}

	caches := cache.NewManager()

	var insightSource insights.Source
	if b.Insights != nil {
		cached := insights.NewCached(b.Insights, cfg.InsightsCacheTTL, insightsCacheEntries)
		caches.Register("insights", cached.Cache())
		insightSource = cached
	}

	var publisher services.Publisher
	if b.Publisher != nil {
		publisher = b.Publisher
	}

	sessions := session.NewStore(cfg.SessionTTL, session.WithSecureCookies(cfg.CookieSecure))
	caches.Register("sessions", sessions.Cache())
	caches.StartCleanup(cacheCleanupInterval)

	dashboard := services.NewDashboard(services.DashboardConfig{
		Transactions: b.Transactions,
		Directory:    b.Directory,
		Insights:     insightSource,
		Classifier:   classifier,
		Publisher:    publisher,
		Logger:       logger,
		Location:     cfg.Location(),
	})
	auth := services.NewAuthService(b.Authenticator, b.Directory, sessions, dashboard)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Dashboard: dashboard,
		Auth:      auth,
		Caches:    caches,
		Ready:     b.Ready,
		Currency:  cfg.Currency,
		Logger:    logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Listening", "port", cfg.Port, "insights", insightSource != nil, "sync_queue", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
