package aggregate

import (
	"testing"
	"time"

	"budgetboard/internal/classify"
	"budgetboard/internal/core"
)

func TestPredicates(t *testing.T) {
	food := tx("1", "10", core.Expense, "Food", "2024-05-10")
	food.Owner = "Ann"
	salary := tx("2", "10", core.Income, "Salary", "2024-06-01")
	salary.Owner = "bob"
	undated := tx("3", "10", core.Expense, "", "")

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		p    Predicate
		t    core.Transaction
		want bool
	}{
		{"expenses keeps expense", Expenses, food, true},
		{"expenses drops income", Expenses, salary, false},
		{"income keeps income", Income, salary, true},
		{"of type", OfType(core.Income), food, false},
		{"owner case-insensitive", OwnedBy("ann"), food, true},
		{"owner mismatch", OwnedBy("ann"), salary, false},
		{"empty owner matches all", OwnedBy(""), salary, true},
		{"category", InCategory("food"), food, true},
		{"uncategorized label", InCategory("Uncategorized"), undated, true},
		{"between inside", Between(from, to), food, true},
		{"between outside", Between(from, to), salary, false},
		{"between undated", Between(from, to), undated, false},
		{"between open", Between(time.Time{}, time.Time{}), undated, true},
		{"between open start", Between(time.Time{}, to), food, true},
		{"and", And(Expenses, OwnedBy("ann"), nil), food, true},
		{"and fails", And(Expenses, Income), food, false},
	}
	for _, tc := range cases {
		if got := tc.p(tc.t); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBetweenInUsesLocation(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	// 23:30 UTC on March 31 is already April 1 in Rome.
	late := tx("1", "10", core.Expense, "Food", "")
	late.Date = core.Date{Time: time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)}

	march := [2]time.Time{time.Date(2024, 3, 1, 0, 0, 0, 0, rome), time.Date(2024, 3, 31, 0, 0, 0, 0, rome)}
	april := [2]time.Time{time.Date(2024, 4, 1, 0, 0, 0, 0, rome), time.Date(2024, 4, 30, 0, 0, 0, 0, rome)}

	if !Between(march[0], march[1])(late) {
		t.Error("without a location the record keeps its UTC day")
	}
	if BetweenIn(rome, march[0], march[1])(late) {
		t.Error("in Rome the record is not in March")
	}
	if !BetweenIn(rome, april[0], april[1])(late) {
		t.Error("in Rome the record is in April")
	}

	s := New(classify.Default(), WithLocation(rome)).Aggregate([]core.Transaction{late}, BetweenIn(rome, april[0], april[1]))
	if s.Count != 1 || s.ByDay["2024-04-01"].Cents != 1000 {
		t.Errorf("day key and window disagree: %+v", s.ByDay)
	}
}
