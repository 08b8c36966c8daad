package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"budgetboard/internal/report"
)

var flagCategory string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "My expenses for a month, by category and budget group",
	Args:  cobra.NoArgs,
	RunE:  withApp(runSummary),
}

func init() {
	summaryCmd.Flags().StringVarP(&flagCategory, "category", "c", "", "Only this category")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(ctx context.Context, a *app, _ []string) error {
	req, err := a.request(ctx)
	if err != nil {
		return err
	}
	req.Category = strings.TrimSpace(flagCategory)

	page, err := a.dashboard.Solo(ctx, req)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s · %s", req.Profile.Username, page.Period.Label)
	if page.Category != "" {
		title += " · " + page.Category
	}
	fmt.Fprintln(a.out)
	fmt.Fprint(a.out, report.Summary(title, page.Summary, a.opts()))
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "  Income %s   Expenses %s   Net %s\n",
		page.Balance.Income.Format(a.cfg.Display.Currency),
		page.Balance.Expenses.Format(a.cfg.Display.Currency),
		page.Balance.Net.Format(a.cfg.Display.Currency))

	if page.InsightsError != "" {
		fmt.Fprint(a.out, report.RenderNote("%s", page.InsightsError))
	} else if len(page.Recommendations) > 0 {
		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, report.Recommendations(recommendations(page.Recommendations), a.opts()))
	}
	return nil
}
