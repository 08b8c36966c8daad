// Package aggregate turns transaction lists into summaries.
//
// Aggregations are pure: no I/O, no shared state, a fresh Summary per call.
// Records whose amount cannot be parsed are excluded and reported in
// Summary.Rejected instead of failing the whole pass.
package aggregate

import (
	"errors"
	"sort"
	"time"

	"budgetboard/internal/core"
)

// Classifier assigns a budget group to a category label.
type Classifier interface {
	Classify(label string) core.BudgetGroup
}

// Aggregator computes summaries. The zero value is not usable; use New.
type Aggregator struct {
	classifier Classifier
	loc        *time.Location
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the location used for per-day keys. By default dates keep
// the offset they were received with.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.loc = loc }
}

// New creates an Aggregator using c to group categories.
func New(c Classifier, opts ...Option) *Aggregator {
	a := &Aggregator{classifier: c}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate sums the transactions selected by include.
func (a *Aggregator) Aggregate(txs []core.Transaction, include Predicate) core.Summary {
	if include == nil {
		include = All
	}
	s := core.NewSummary()
	for _, t := range txs {
		if !include(t) {
			continue
		}
		amt, err := t.Money()
		if err != nil {
			s.Rejected = appendRejected(s.Rejected, t, err)
			continue
		}
		total, ok := s.Total.CheckedAdd(amt)
		if !ok {
			s.Rejected = appendRejected(s.Rejected, t, core.ErrAmountOverflow)
			continue
		}
		label := t.Label()
		s.Total = total
		s.Count++
		s.ByCategory[label] = s.ByCategory[label].Add(amt)
		g := a.classifier.Classify(label)
		s.ByGroup[g] = s.ByGroup[g].Add(amt)
		day := t.DayKey(a.loc)
		s.ByDay[day] = s.ByDay[day].Add(amt)
		owner := t.OwnerName()
		s.ByOwner[owner] = s.ByOwner[owner].Add(amt)
	}
	return s
}

// Compare aggregates current and previous with the same predicate and attaches
// per-category trends for every category seen in either period.
func (a *Aggregator) Compare(current, previous []core.Transaction, include Predicate) core.Summary {
	cur := a.Aggregate(current, include)
	prev := a.Aggregate(previous, include)

	cmp := &core.Comparison{
		PreviousTotal:      prev.Total,
		PreviousCount:      prev.Count,
		PreviousByCategory: prev.ByCategory,
		Total:              core.NewTrend(cur.Total, prev.Total),
		Trends:             make(map[string]core.Trend, len(cur.ByCategory)),
	}
	for cat, amt := range cur.ByCategory {
		cmp.Trends[cat] = core.NewTrend(amt, prev.ByCategory[cat])
	}
	for cat, amt := range prev.ByCategory {
		if _, ok := cmp.Trends[cat]; !ok {
			cmp.Trends[cat] = core.NewTrend(core.Money{}, amt)
		}
	}
	cur.Comparison = cmp
	cur.Rejected = append(cur.Rejected, prev.Rejected...)
	return cur
}

// Balance totals income and expenses. Other transaction types are ignored.
func Balance(txs []core.Transaction) core.Balance {
	var b core.Balance
	for _, t := range txs {
		if t.Type != core.Income && t.Type != core.Expense {
			continue
		}
		amt, err := t.Money()
		if err != nil {
			b.Rejected = appendRejected(b.Rejected, t, err)
			continue
		}
		sum := &b.Expenses
		if t.Type == core.Income {
			sum = &b.Income
		}
		next, ok := sum.CheckedAdd(amt)
		if !ok {
			b.Rejected = appendRejected(b.Rejected, t, core.ErrAmountOverflow)
			continue
		}
		*sum = next
		b.Count++
	}
	b.Net = b.Income.Sub(b.Expenses)
	return b
}

// Monthly returns income, expenses and net per YYYY-MM in chronological order,
// with months keyed in loc (nil keeps each date's own offset). Undated records
// are skipped. So are malformed or overflowing amounts: Balance over the same
// transactions reports those in Rejected.
func Monthly(txs []core.Transaction, loc *time.Location) []core.MonthBalance {
	byMonth := make(map[string]*core.MonthBalance)
	for _, t := range txs {
		if t.Date.IsZero() || (t.Type != core.Income && t.Type != core.Expense) {
			continue
		}
		amt, err := t.Money()
		if err != nil {
			continue
		}
		key := t.MonthKey(loc)
		mb, ok := byMonth[key]
		if !ok {
			mb = &core.MonthBalance{Month: key}
			byMonth[key] = mb
		}
		sum := &mb.Expenses
		if t.Type == core.Income {
			sum = &mb.Income
		}
		if next, ok := sum.CheckedAdd(amt); ok {
			*sum = next
		}
	}

	months := make([]core.MonthBalance, 0, len(byMonth))
	for _, mb := range byMonth {
		mb.Net = mb.Income.Sub(mb.Expenses)
		months = append(months, *mb)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month < months[j].Month
	})
	return months
}

// Owners returns the distinct owners among txs, sorted.
func Owners(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	for _, t := range txs {
		seen[t.OwnerName()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

func appendRejected(list []*core.RecordError, t core.Transaction, err error) []*core.RecordError {
	var rec *core.RecordError
	if !errors.As(err, &rec) {
		rec = &core.RecordError{ID: t.ID, Raw: string(t.Amount), Err: err}
	}
	return append(list, rec)
}
