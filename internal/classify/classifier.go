// Package classify maps free-form category labels to budget groups.
//
// Matching is keyword containment in both directions and case-insensitive:
// a label matches a group when it contains one of the group's keywords or a
// keyword contains the label. Groups are scanned in a fixed priority order and
// the first match wins. Anything unmatched lands in core.Unexpected.
package classify

import (
	"strings"

	"budgetboard/internal/core"
)

// Fallback is the group for labels no keyword matches.
const Fallback = core.Unexpected

// Priority is the scan order of the keyed groups.
var Priority = []core.BudgetGroup{core.Mandatory, core.Savings, core.Discretionary}

// Table holds keywords per budget group. Keywords are stored lower-cased.
type Table map[core.BudgetGroup][]string

// DefaultTable returns the built-in keyword table.
func DefaultTable() Table {
	return Table{
		core.Mandatory: {
			"food", "groceries", "supermarket", "rent", "mortgage", "utilities",
			"electricity", "water", "internet", "phone", "insurance", "healthcare",
			"medical", "pharmacy", "transport", "fuel", "education", "tuition",
			"tax", "bill",
		},
		core.Savings: {
			"savings", "investment", "deposit", "pension", "retirement",
			"emergency fund", "goal",
		},
		core.Discretionary: {
			"entertainment", "restaurant", "dining", "cafe", "shopping", "clothing",
			"travel", "vacation", "hobby", "fitness", "gym", "streaming", "games",
			"gift",
		},
	}
}

// Classifier assigns budget groups to category labels. It is safe for
// concurrent use once built.
type Classifier struct {
	order []core.BudgetGroup
	table Table
}

// New builds a classifier from t. Keywords are normalized and blanks dropped.
func New(t Table) *Classifier {
	norm := make(Table, len(t))
	for g, kws := range t {
		for _, kw := range kws {
			kw = normalize(kw)
			if kw == "" {
				continue
			}
			norm[g] = append(norm[g], kw)
		}
	}
	return &Classifier{order: Priority, table: norm}
}

// Default returns a classifier over DefaultTable.
func Default() *Classifier {
	return New(DefaultTable())
}

// Classify returns the budget group for label. It never fails.
func (c *Classifier) Classify(label string) core.BudgetGroup {
	l := normalize(label)
	if l == "" || l == strings.ToLower(core.UncategorizedLabel) {
		return Fallback
	}
	for _, g := range c.order {
		for _, kw := range c.table[g] {
			if strings.Contains(l, kw) || strings.Contains(kw, l) {
				return g
			}
		}
	}
	return Fallback
}

// Keywords returns a copy of the keywords for g.
func (c *Classifier) Keywords(g core.BudgetGroup) []string {
	return append([]string(nil), c.table[g]...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
