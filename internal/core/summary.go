package core

import (
	"sort"
	"strings"
)

// BudgetGroup is the coarse bucket a category belongs to.
type BudgetGroup string

const (
	Mandatory     BudgetGroup = "Mandatory"
	Discretionary BudgetGroup = "Discretionary"
	Savings       BudgetGroup = "Savings"
	Unexpected    BudgetGroup = "Unexpected"
)

// Groups lists every budget group in display order.
var Groups = []BudgetGroup{Mandatory, Discretionary, Savings, Unexpected}

// ParseBudgetGroup matches a group name case-insensitively.
func ParseBudgetGroup(s string) (BudgetGroup, bool) {
	for _, g := range Groups {
		if strings.EqualFold(string(g), strings.TrimSpace(s)) {
			return g, true
		}
	}
	return "", false
}

// Direction of a period-over-period change.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// Trend compares a current amount with the previous period.
type Trend struct {
	Current   Money
	Previous  Money
	Direction Direction
	Percent   float64 // |current-previous|/previous*100, 0 when previous is 0
}

// NewTrend derives direction and percent change between two amounts.
func NewTrend(current, previous Money) Trend {
	t := Trend{Current: current, Previous: previous, Direction: Flat}
	switch {
	case current.Cents > previous.Cents:
		t.Direction = Up
	case current.Cents < previous.Cents:
		t.Direction = Down
	}
	if previous.Cents > 0 {
		diff := current.Cents - previous.Cents
		if diff < 0 {
			diff = -diff
		}
		t.Percent = float64(diff) / float64(previous.Cents) * 100
	}
	return t
}

// CategoryAmount represents an amount aggregated by name.
type CategoryAmount struct {
	Name   string
	Amount Money
	Share  float64 // percentage of the summary total
}

// Comparison holds the previous period figures of a Summary.
type Comparison struct {
	PreviousTotal      Money
	PreviousCount      int
	PreviousByCategory map[string]Money
	Total              Trend
	Trends             map[string]Trend // keyed by category
}

// Summary is the result of one aggregation pass.
type Summary struct {
	Total      Money
	Count      int
	ByCategory map[string]Money
	ByGroup    map[BudgetGroup]Money
	ByDay      map[string]Money
	ByOwner    map[string]Money
	Rejected   []*RecordError
	Comparison *Comparison
}

// NewSummary returns an empty summary with initialized maps.
func NewSummary() Summary {
	return Summary{
		ByCategory: map[string]Money{},
		ByGroup:    map[BudgetGroup]Money{},
		ByDay:      map[string]Money{},
		ByOwner:    map[string]Money{},
	}
}

// IsEmpty reports whether nothing was aggregated.
func (s Summary) IsEmpty() bool { return s.Count == 0 }

// Average returns the mean amount per transaction, 0 when empty.
func (s Summary) Average() Money {
	if s.Count == 0 {
		return Money{}
	}
	return Money{Cents: s.Total.Cents / int64(s.Count)}
}

// AveragePerOwner returns the total divided by the number of owners.
func (s Summary) AveragePerOwner() Money {
	if len(s.ByOwner) == 0 {
		return Money{}
	}
	return Money{Cents: s.Total.Cents / int64(len(s.ByOwner))}
}

// Share returns amount as a percentage of the total, 0 when the total is 0.
func (s Summary) Share(amount Money) float64 {
	return Ratio(amount, s.Total)
}

// Categories returns categories sorted by amount descending, then name.
func (s Summary) Categories() []CategoryAmount {
	return s.ranked(s.ByCategory)
}

// TopCategories returns at most n categories by amount.
func (s Summary) TopCategories(n int) []CategoryAmount {
	all := s.Categories()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Owners returns owners sorted by amount descending.
func (s Summary) Owners() []CategoryAmount {
	return s.ranked(s.ByOwner)
}

// GroupAmounts returns every budget group in display order, including zeros.
func (s Summary) GroupAmounts() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(Groups))
	for _, g := range Groups {
		amt := s.ByGroup[g]
		out = append(out, CategoryAmount{Name: string(g), Amount: amt, Share: s.Share(amt)})
	}
	return out
}

// Days returns per-day amounts in chronological order; undated sorts last.
func (s Summary) Days() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.ByDay))
	for k, v := range s.ByDay {
		out = append(out, CategoryAmount{Name: k, Amount: v, Share: s.Share(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == UndatedKey {
			return false
		}
		if out[j].Name == UndatedKey {
			return true
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Trend returns the trend for a category, if a comparison was computed.
func (s Summary) Trend(category string) (Trend, bool) {
	if s.Comparison == nil {
		return Trend{}, false
	}
	t, ok := s.Comparison.Trends[category]
	return t, ok
}

func (s Summary) ranked(m map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for k, v := range m {
		out = append(out, CategoryAmount{Name: k, Amount: v, Share: s.Share(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Balance is income against expenses over a set of transactions.
type Balance struct {
	Income   Money
	Expenses Money
	Net      Money
	Count    int
	Rejected []*RecordError
}

// MonthBalance is a Balance for one YYYY-MM month.
type MonthBalance struct {
	Month    string
	Income   Money
	Expenses Money
	Net      Money
}
