package report

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"budgetboard/internal/core"
	"budgetboard/internal/insights"
)

func sampleSummary() core.Summary {
	s := core.NewSummary()
	s.Total = core.Money{Cents: 12345}
	s.Count = 3
	s.ByCategory["Food"] = core.Money{Cents: 10000}
	s.ByCategory["Café"] = core.Money{Cents: 2345}
	s.ByGroup[core.Mandatory] = core.Money{Cents: 10000}
	s.ByGroup[core.Discretionary] = core.Money{Cents: 2345}
	s.ByOwner["ann"] = s.Total
	s.Comparison = &core.Comparison{
		PreviousTotal: core.Money{Cents: 10000},
		Total:         core.NewTrend(s.Total, core.Money{Cents: 10000}),
		Trends: map[string]core.Trend{
			"Food": core.NewTrend(core.Money{Cents: 10000}, core.Money{Cents: 5000}),
		},
	}
	s.Rejected = []*core.RecordError{{ID: "x9"}}
	return s
}

func TestRenderTableAlignsWideRunes(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Name", "Amount"},
		Rows:    [][]string{{"Café", "€1.00"}, Separator, {"Food", "€10.00"}},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	width := lipgloss.Width(lines[0])
	for i, l := range lines {
		if n := lipgloss.Width(l); n != width {
			t.Errorf("line %d has width %d, want %d: %q", i, n, width, l)
		}
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if out := RenderTable(Table{}); out != "" {
		t.Errorf("empty table rendered %q", out)
	}
}

func TestSummary(t *testing.T) {
	out := Summary("ann · March 2024", sampleSummary(), Options{Currency: "€"})
	for _, want := range []string{"March 2024", "€123.45", "€100.00", "Café", "Mandatory", "Savings", "▲ 100%", "x9"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryEmpty(t *testing.T) {
	out := Summary("Empty", core.NewSummary(), Options{Currency: "$"})
	if !strings.Contains(out, "No expenses") {
		t.Errorf("missing empty state:\n%s", out)
	}
}

func TestOwnersAverage(t *testing.T) {
	s := sampleSummary()
	s.ByOwner["bob"] = core.Money{Cents: 0}
	out := Owners(s, 2, Options{Currency: "$"})
	if !strings.Contains(out, "Average of 2") || !strings.Contains(out, "$61.72") {
		t.Errorf("owners table:\n%s", out)
	}
}

func TestInsightTables(t *testing.T) {
	opts := Options{Currency: "$"}

	recs := Recommendations(insights.Recommendations{Items: []insights.Recommendation{
		{Title: "Cook at home", Priority: "high", PotentialSavings: 45.5},
	}}, opts)
	if !strings.Contains(recs, "Cook at home") || !strings.Contains(recs, "$45.50") {
		t.Errorf("recommendations:\n%s", recs)
	}

	preds := Predictions(insights.Predictions{
		Months:            []string{"2024-04"},
		PredictedExpenses: []float64{100},
		PredictedIncome:   []float64{150},
		ConfidenceScore:   0.8,
	}, opts)
	if !strings.Contains(preds, "$50.00") || !strings.Contains(preds, "80%") {
		t.Errorf("predictions:\n%s", preds)
	}

	analysis := Analysis(insights.Analysis{
		TotalExpenses: 300,
		ByCategory:    map[string]float64{"Rent": 200, "Food": 100},
	}, opts)
	if strings.Index(analysis, "Rent") > strings.Index(analysis, "Food") {
		t.Errorf("categories should be ordered by amount:\n%s", analysis)
	}

	if out := Anomalies(insights.Anomalies{Note: "Need more data"}, opts); !strings.Contains(out, "Need more data") {
		t.Errorf("anomalies note:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 5, 10}); got != "▁▄█" {
		t.Errorf("sparkline = %q", got)
	}
	if RenderSparkline(nil) != "" {
		t.Error("empty sparkline")
	}
}

func TestFormatPercent(t *testing.T) {
	cases := map[float64]string{0: "0%", 50: "50%", 12.34: "12.3%"}
	for in, want := range cases {
		if got := FormatPercent(in); got != want {
			t.Errorf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}
