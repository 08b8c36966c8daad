package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"budgetboard/internal/classify"
	"budgetboard/internal/report"
)

var flagKeywords string

var classifyCmd = &cobra.Command{
	Use:   "classify LABEL...",
	Short: "Show the budget group for category names or descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&flagKeywords, "keywords", "", "Keyword table (.yaml or .toml), overrides the config file")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(_ *cobra.Command, args []string) error {
	cfg, err := loadCtlConfig(flagConfig)
	if err != nil {
		return err
	}
	path := cfg.Data.KeywordsFile
	if flagKeywords != "" {
		path = flagKeywords
	}
	c, err := classify.FromFile(path)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(args))
	for _, label := range args {
		rows = append(rows, []string{strings.TrimSpace(label), string(c.Classify(label))})
	}
	fmt.Fprint(os.Stdout, report.RenderTable(report.Table{
		Headers: []string{"Label", "Group"},
		Rows:    rows,
	}))
	return nil
}
