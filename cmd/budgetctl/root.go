package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"budgetboard/internal/backend"
	"budgetboard/internal/classify"
	"budgetboard/internal/core"
	"budgetboard/internal/log"
	"budgetboard/internal/report"
	"budgetboard/internal/services"
)

var (
	flagConfig   string
	flagMonth    string
	flagSeed     string
	flagVerbose  bool
	flagCurrency string
)

var rootCmd = &cobra.Command{
	Use:           "budgetctl",
	Short:         "Family budget figures in the terminal",
	Long:          "Summaries, family totals, category groups and insights from the budget service.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", configPath(), "Config file")
	rootCmd.PersistentFlags().StringVarP(&flagMonth, "month", "m", "", "Month to show (YYYY-MM), default current")
	rootCmd.PersistentFlags().StringVar(&flagSeed, "seed", "", "Read transactions from a JSON seed file instead of the API")
	rootCmd.PersistentFlags().StringVar(&flagCurrency, "currency", "", "Currency symbol for amounts")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log requests to stderr")
}

// app is what every data command needs.
type app struct {
	cfg       ctlConfig
	dashboard *services.Dashboard
	backend   *backend.Backend
	cleanup   backend.CleanupFunc
	token     string
	out       io.Writer
}

func (a *app) opts() report.Options {
	return report.Options{Currency: a.cfg.Display.Currency}
}

func (a *app) close() {
	if a.cleanup != nil {
		_ = a.cleanup()
	}
}

// newApp loads the config and wires the data backend.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadCtlConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagSeed != "" {
		cfg.Data.SeedFile = flagSeed
	}
	if flagCurrency != "" {
		cfg.Display.Currency = flagCurrency
	}

	level := "error"
	if flagVerbose {
		level = "debug"
	}
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(level)
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)

	bcfg := backend.Config{
		Type:          backend.APIBackend,
		APIBaseURL:    cfg.API.BaseURL,
		APITimeout:    cfg.timeout(),
		APIAuthScheme: cfg.API.AuthScheme,
	}
	token := cfg.token()
	if cfg.Data.SeedFile != "" {
		bcfg.Type = backend.MemoryBackend
		bcfg.MemorySeedFile = cfg.Data.SeedFile
	}
	if token == "" {
		return nil, errors.New("no API token: set BUDGET_API_TOKEN or api.token in " + flagConfig)
	}

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.FromFile(cfg.Data.KeywordsFile)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg: cfg,
		dashboard: services.NewDashboard(services.DashboardConfig{
			Transactions: res.Backend.Transactions,
			Directory:    res.Backend.Directory,
			Insights:     res.Backend.Insights,
			Classifier:   classifier,
			Logger:       logger,
			Location:     cfg.location(),
		}),
		backend: res.Backend,
		cleanup: res.Cleanup,
		token:   token,
		out:     os.Stdout,
	}, nil
}

// request resolves the signed-in profile and the selected month.
func (a *app) request(ctx context.Context) (services.Request, error) {
	month, err := services.ParseMonth(flagMonth)
	if err != nil {
		return services.Request{}, err
	}
	var profile core.Profile
	if a.backend.Directory != nil {
		profile, err = a.backend.Directory.FetchProfile(ctx, a.token)
		if err != nil {
			return services.Request{}, fmt.Errorf("fetch profile: %w", err)
		}
	}
	return services.Request{
		SessionID: "budgetctl",
		Token:     a.token,
		Profile:   profile,
		Month:     month,
	}, nil
}

// withApp runs fn with a wired app and a bounded context.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, args)
	}
}
