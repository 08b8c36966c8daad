package http

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/services"
)

// templateFuncs returns the helpers available to every template. Amounts are
// rendered with the configured currency symbol.
func templateFuncs(currency string) template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.Format(currency) },
		"units": func(f float64) string { return unitsToMoney(f).Format(currency) },
		"pct":   formatPercent,
		// fraction renders a 0..1 score as a percentage.
		"fraction": func(f float64) string { return formatPercent(math.Round(f*1000) / 10) },
		"bar":      barWidth,
		"arrow":    trendArrow,
		"trendClass": func(d core.Direction) string {
			return "trend--" + string(d)
		},
		"groupClass": func(g string) string {
			return "group--" + strings.ToLower(g)
		},
		"day": formatDay,
		"nav": newMonthNav,
	}
}

// monthNav links the previous and next months of a view, keeping its filters.
type monthNav struct {
	Label   string
	PrevKey string
	NextKey string
	Prev    template.URL
	Next    template.URL
}

func newMonthNav(view services.View, p services.Period, q DashboardQuery) (monthNav, error) {
	prev, err := services.ParseMonth(p.PrevKey)
	if err != nil {
		return monthNav{}, err
	}
	next, err := services.ParseMonth(p.NextKey)
	if err != nil {
		return monthNav{}, err
	}
	pq, nq := q, q
	pq.Month, nq.Month = prev, next
	return monthNav{
		Label:   p.Label,
		PrevKey: p.PrevKey,
		NextKey: p.NextKey,
		Prev:    viewURL(view, pq),
		Next:    viewURL(view, nq),
	}, nil
}

// unitsToMoney converts a float amount from the insight service to cents.
func unitsToMoney(f float64) core.Money {
	return core.Money{Cents: int64(math.Round(f * 100))}
}

func formatPercent(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%.0f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}

// barWidth turns a share into a progress bar width. Non-zero shares stay visible.
func barWidth(share float64) int {
	if share <= 0 {
		return 0
	}
	width := int(math.Round(share))
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

func trendArrow(d core.Direction) string {
	switch d {
	case core.Up:
		return "▲"
	case core.Down:
		return "▼"
	default:
		return "="
	}
}

func formatDay(key string) string {
	if key == core.UndatedKey {
		return "Undated"
	}
	return key
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// isBoosted reports a boosted navigation, which expects a full page.
func isBoosted(r *http.Request) bool {
	return r.Header.Get("HX-Boosted") == "true"
}
