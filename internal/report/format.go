package report

import (
	"fmt"
	"math"

	"budgetboard/internal/core"
)

// FormatPercent formats a 0..100 percentage.
func FormatPercent(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%.0f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}

// FormatTrend renders a trend as an arrow and percent change, colored by direction.
func FormatTrend(t core.Trend) string {
	switch t.Direction {
	case core.Up:
		return upStyle.Render("▲ " + FormatPercent(t.Percent))
	case core.Down:
		return downStyle.Render("▼ " + FormatPercent(t.Percent))
	default:
		return mutedStyle.Render("=")
	}
}

// FormatUnits formats a float amount from the insight service.
func FormatUnits(f float64, currency string) string {
	return core.Money{Cents: int64(math.Round(f * 100))}.Format(currency)
}
