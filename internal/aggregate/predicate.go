package aggregate

import (
	"strings"
	"time"

	"budgetboard/internal/core"
)

// Predicate selects the transactions an aggregation includes.
type Predicate func(core.Transaction) bool

// All includes every transaction.
func All(core.Transaction) bool { return true }

// Expenses includes expense transactions only.
func Expenses(t core.Transaction) bool { return t.Type == core.Expense }

// Income includes income transactions only.
func Income(t core.Transaction) bool { return t.Type == core.Income }

// OfType includes transactions of the given type.
func OfType(tt core.TransactionType) Predicate {
	return func(t core.Transaction) bool { return t.Type == tt }
}

// OwnedBy includes transactions logged by owner (case-insensitive).
// An empty owner matches everything.
func OwnedBy(owner string) Predicate {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return All
	}
	return func(t core.Transaction) bool { return strings.EqualFold(t.OwnerName(), owner) }
}

// InCategory includes transactions whose effective label equals category.
// An empty category matches everything.
func InCategory(category string) Predicate {
	category = strings.TrimSpace(category)
	if category == "" {
		return All
	}
	return func(t core.Transaction) bool { return strings.EqualFold(t.Label(), category) }
}

// Between includes transactions dated within [from, to] by calendar day.
// Zero bounds are open. Undated transactions only pass when both bounds are zero.
// Transaction dates keep the offset they were received with; see BetweenIn.
func Between(from, to time.Time) Predicate {
	return BetweenIn(nil, from, to)
}

// BetweenIn is Between with transaction dates converted to loc before taking
// the calendar day, matching the per-day keys of an Aggregator built
// WithLocation(loc). The bounds are calendar days as given.
func BetweenIn(loc *time.Location, from, to time.Time) Predicate {
	if from.IsZero() && to.IsZero() {
		return All
	}
	lo, hi := dayOf(from), dayOf(to)
	return func(t core.Transaction) bool {
		if t.Date.IsZero() {
			return false
		}
		d := t.Date.Time
		if loc != nil {
			d = d.In(loc)
		}
		day := dayOf(d)
		if !from.IsZero() && day < lo {
			return false
		}
		if !to.IsZero() && day > hi {
			return false
		}
		return true
	}
}

// And includes transactions matching every predicate.
func And(ps ...Predicate) Predicate {
	return func(t core.Transaction) bool {
		for _, p := range ps {
			if p != nil && !p(t) {
				return false
			}
		}
		return true
	}
}

func dayOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
