package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the budgetctl config file",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadCtlConfig(flagConfig)
	if err != nil {
		return err
	}
	token := "(not set)"
	if cfg.token() != "" {
		token = "(set)"
	}
	fmt.Printf("  Config file  %s\n", flagConfig)
	fmt.Printf("  API          %s (%s, timeout %s)\n", cfg.API.BaseURL, cfg.API.AuthScheme, cfg.timeout())
	fmt.Printf("  Token        %s\n", token)
	fmt.Printf("  Currency     %s\n", cfg.Display.Currency)
	if cfg.Data.SeedFile != "" {
		fmt.Printf("  Seed file    %s\n", cfg.Data.SeedFile)
	}
	if cfg.Data.KeywordsFile != "" {
		fmt.Printf("  Keywords     %s\n", cfg.Data.KeywordsFile)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(flagConfig); err == nil {
		return fmt.Errorf("%s already exists", flagConfig)
	}
	if err := saveCtlConfig(flagConfig, defaultCtlConfig()); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", flagConfig)
	return nil
}
