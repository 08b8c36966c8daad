package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	// UncategorizedLabel is used when a transaction carries no category.
	UncategorizedLabel = "Uncategorized"
	// UnknownOwner is used when a transaction carries no owner.
	UnknownOwner = "Unknown"
	// UndatedKey is the per-day bucket for transactions without a usable date.
	UndatedKey = "undated"
)

type (
	TransactionType string

	// RawAmount is the textual amount exactly as received from a feed.
	RawAmount string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string
		Amount      RawAmount
		Type        TransactionType
		Category    string // empty when the feed sent no category
		Owner       string // username of whoever logged it
		OwnerID     string
		Date        Date
		Description string
	}

	// Member is a person in the family as reported by the directory.
	Member struct {
		ID       string
		Username string
		Role     string
	}

	// Profile is the authenticated user.
	Profile struct {
		ID       string
		Username string
		Email    string
		Role     string
		FamilyID string
		Family   string
	}
)

var (
	ErrInvalidDay     = errors.New("invalid day")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
	ErrAmountOverflow = errors.New("amount overflows the total")
	ErrInvalidType    = errors.New("invalid transaction type")

	// ErrDataQuality marks a single malformed record. It never aborts an aggregation.
	ErrDataQuality = errors.New("data quality")
)

// RecordError reports one transaction excluded from an aggregation.
type RecordError struct {
	ID  string
	Raw string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("transaction %s: amount %q: %v", e.ID, e.Raw, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrDataQuality, e.Err} }

// Label returns the category used for grouping.
func (t Transaction) Label() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

// OwnerName returns the owner used for per-member grouping.
func (t Transaction) OwnerName() string {
	if o := strings.TrimSpace(t.Owner); o != "" {
		return o
	}
	return UnknownOwner
}

// Money parses the raw amount. Failures are reported as *RecordError.
func (t Transaction) Money() (Money, error) {
	m, err := ParseAmount(string(t.Amount))
	if err != nil {
		return Money{}, &RecordError{ID: t.ID, Raw: string(t.Amount), Err: err}
	}
	return m, nil
}

// DayKey returns the calendar day of the transaction as YYYY-MM-DD.
// A nil loc keeps the offset the date was received with.
func (t Transaction) DayKey(loc *time.Location) string {
	return t.dateKey(loc, "2006-01-02")
}

// MonthKey returns YYYY-MM, or UndatedKey.
func (t Transaction) MonthKey(loc *time.Location) string {
	return t.dateKey(loc, "2006-01")
}

func (t Transaction) dateKey(loc *time.Location, layout string) string {
	if t.Date.IsZero() {
		return UndatedKey
	}
	if loc == nil {
		return t.Date.Format(layout)
	}
	return t.Date.In(loc).Format(layout)
}

func (tt TransactionType) Validate() error {
	switch tt {
	case Expense, Income:
		return nil
	}
	return ErrInvalidType
}

// ParseTransactionType normalizes a wire value. Unknown values are kept as-is.
func ParseTransactionType(s string) TransactionType {
	return TransactionType(strings.ToLower(strings.TrimSpace(s)))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts ISO-8601 dates and datetimes as sent by the API.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// IsKid reports whether the role may only see its own expenses.
func (p Profile) IsKid() bool {
	return strings.EqualFold(p.Role, "kid")
}
