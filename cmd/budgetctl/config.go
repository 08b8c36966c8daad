package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ctlConfig is the budgetctl settings file.
type ctlConfig struct {
	API     apiConfig     `toml:"api"`
	Display displayConfig `toml:"display"`
	Data    dataConfig    `toml:"data"`
}

type apiConfig struct {
	BaseURL    string `toml:"base_url"`
	AuthScheme string `toml:"auth_scheme"`
	Timeout    string `toml:"timeout"`
	Token      string `toml:"token,omitempty"`
}

type displayConfig struct {
	Currency string `toml:"currency"`
	Timezone string `toml:"timezone,omitempty"`
}

type dataConfig struct {
	// SeedFile switches to the offline memory feed when set.
	SeedFile     string `toml:"seed_file,omitempty"`
	KeywordsFile string `toml:"keywords_file,omitempty"`
}

func defaultCtlConfig() ctlConfig {
	return ctlConfig{
		API: apiConfig{
			BaseURL:    "http://localhost:8000",
			AuthScheme: "Token",
			Timeout:    "15s",
		},
		Display: displayConfig{Currency: "$"},
	}
}

// configDir returns the XDG config directory for budgetctl.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "budgetboard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "budgetboard")
}

func configPath() string {
	return filepath.Join(configDir(), "budgetctl.toml")
}

// loadCtlConfig reads path, returning defaults when the file does not exist.
func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// saveCtlConfig writes cfg to path, creating the directory.
func saveCtlConfig(path string, cfg ctlConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// token returns BUDGET_API_TOKEN, falling back to the config file.
func (c ctlConfig) token() string {
	if t := os.Getenv("BUDGET_API_TOKEN"); t != "" {
		return t
	}
	return c.API.Token
}

func (c ctlConfig) timeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

func (c ctlConfig) location() *time.Location {
	if c.Display.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil
	}
	return loc
}
