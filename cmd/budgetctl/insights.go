package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"budgetboard/internal/insights"
	"budgetboard/internal/report"
)

var insightsCmd = &cobra.Command{
	Use:       "insights [KIND]",
	Short:     "Analysis, forecast, recommendations and anomalies",
	Long:      "Without KIND every insight is shown. KIND is one of analysis, predictions, recommendations, anomalies.",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"analysis", "predictions", "recommendations", "anomalies"},
	RunE:      withApp(runInsights),
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(ctx context.Context, a *app, args []string) error {
	var only insights.Kind
	if len(args) == 1 {
		k, ok := insights.ParseKind(args[0])
		if !ok || k == insights.KindCategorization {
			return fmt.Errorf("unknown insight kind %q", args[0])
		}
		only = k
	}
	if !a.dashboard.HasInsights() {
		return fmt.Errorf("insights need the budget API, not a seed file")
	}

	req, err := a.request(ctx)
	if err != nil {
		return err
	}
	page, err := a.dashboard.Assistant(ctx, req)
	if err != nil {
		return err
	}

	show := func(k insights.Kind) bool { return only == "" || only == k }
	section := func(k insights.Kind, loaded bool, render func() string) {
		if !show(k) {
			return
		}
		if msg := page.Errors[k]; msg != "" {
			fmt.Fprintln(a.out)
			fmt.Fprint(a.out, report.RenderWarning("%s: %s", k, msg))
			return
		}
		if loaded {
			fmt.Fprintln(a.out)
			fmt.Fprint(a.out, render())
		}
	}

	if only == "" {
		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, report.RenderTitle("Last 12 months"))
		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, report.Monthly(page.Monthly, a.opts()))
	}
	section(insights.KindAnalysis, page.Analysis != nil, func() string { return report.Analysis(*page.Analysis, a.opts()) })
	section(insights.KindPredictions, page.Predictions != nil, func() string { return report.Predictions(*page.Predictions, a.opts()) })
	section(insights.KindRecommendations, page.Recommendations != nil, func() string {
		return report.Recommendations(*page.Recommendations, a.opts())
	})
	section(insights.KindAnomalies, page.Anomalies != nil, func() string { return report.Anomalies(*page.Anomalies, a.opts()) })
	return nil
}

func recommendations(items []insights.Recommendation) insights.Recommendations {
	return insights.Recommendations{Items: items}
}
