package report

import (
	"fmt"
	"sort"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/insights"
)

const barWidth = 20

// Options controls how amounts are printed.
type Options struct {
	Currency string
}

func (o Options) money(m core.Money) string {
	return m.Format(o.Currency)
}

// Summary renders headline figures followed by the category and group tables.
func Summary(title string, s core.Summary, opts Options) string {
	var b strings.Builder
	b.WriteString(RenderTitle(title))
	b.WriteString("\n\n")

	if s.IsEmpty() {
		b.WriteString(RenderNote("No expenses in this period."))
		writeRejected(&b, s.Rejected)
		return b.String()
	}

	rows := [][]string{
		{"Total", opts.money(s.Total)},
		{"Transactions", fmt.Sprintf("%d", s.Count)},
		{"Average", opts.money(s.Average())},
	}
	if c := s.Comparison; c != nil {
		rows = append(rows, Separator,
			[]string{"Previous period", opts.money(c.PreviousTotal)},
			[]string{"Change", FormatTrend(c.Total)},
		)
	}
	b.WriteString(RenderTable(Table{Headers: []string{"Metric", "Value"}, Rows: rows}))
	b.WriteString("\n")

	b.WriteString(Categories(s, opts))
	b.WriteString("\n")
	b.WriteString(Groups(s, opts))
	writeRejected(&b, s.Rejected)
	return b.String()
}

// Categories renders the per-category table with shares and trends.
func Categories(s core.Summary, opts Options) string {
	rows := make([][]string, 0, len(s.ByCategory))
	for _, c := range s.Categories() {
		trend := ""
		if t, ok := s.Trend(c.Name); ok {
			trend = FormatTrend(t)
		}
		rows = append(rows, []string{c.Name, opts.money(c.Amount), FormatPercent(c.Share), RenderBar(c.Share, barWidth), trend})
	}
	return RenderTable(Table{
		Title:   "By category",
		Headers: []string{"Category", "Amount", "Share", "", "Trend"},
		Rows:    rows,
	})
}

// Groups renders every budget group, including empty ones.
func Groups(s core.Summary, opts Options) string {
	groups := s.GroupAmounts()
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.Name, opts.money(g.Amount), FormatPercent(g.Share)})
	}
	return RenderTable(Table{
		Title:   "By budget group",
		Headers: []string{"Group", "Amount", "Share"},
		Rows:    rows,
	})
}

// Owners renders the per-member table of a family summary.
func Owners(s core.Summary, memberCount int, opts Options) string {
	rows := make([][]string, 0, len(s.ByOwner)+2)
	for _, o := range s.Owners() {
		rows = append(rows, []string{o.Name, opts.money(o.Amount), FormatPercent(o.Share), RenderBar(o.Share, barWidth)})
	}
	if memberCount > 0 {
		avg := core.Money{Cents: s.Total.Cents / int64(memberCount)}
		rows = append(rows, Separator, []string{fmt.Sprintf("Average of %d", memberCount), opts.money(avg), "", ""})
	}
	return RenderTable(Table{
		Title:   "By member",
		Headers: []string{"Member", "Amount", "Share", ""},
		Rows:    rows,
	})
}

// Monthly renders income and expenses per month with an expense sparkline.
func Monthly(months []core.MonthBalance, opts Options) string {
	if len(months) == 0 {
		return RenderNote("No transactions in this period.")
	}
	rows := make([][]string, 0, len(months))
	spend := make([]float64, 0, len(months))
	for _, m := range months {
		rows = append(rows, []string{m.Month, opts.money(m.Income), opts.money(m.Expenses), opts.money(m.Net)})
		spend = append(spend, m.Expenses.Units())
	}
	var b strings.Builder
	b.WriteString(RenderTable(Table{
		Title:   "Month by month",
		Headers: []string{"Month", "Income", "Expenses", "Net"},
		Rows:    rows,
	}))
	b.WriteString(RenderNote("Expenses %s", RenderSparkline(spend)))
	return b.String()
}

// Recommendations renders the insight service suggestions.
func Recommendations(r insights.Recommendations, opts Options) string {
	if len(r.Items) == 0 {
		return RenderNote("No recommendations yet.")
	}
	rows := make([][]string, 0, len(r.Items))
	for _, item := range r.Items {
		savings := ""
		if item.PotentialSavings > 0 {
			savings = FormatUnits(item.PotentialSavings, opts.Currency)
		}
		rows = append(rows, []string{item.Title, item.Priority, savings})
	}
	return RenderTable(Table{
		Title:   "Recommendations",
		Headers: []string{"Recommendation", "Priority", "Savings"},
		Rows:    rows,
	})
}

// Anomalies renders transactions flagged as unusual.
func Anomalies(a insights.Anomalies, opts Options) string {
	if len(a.Items) == 0 {
		if a.Note != "" {
			return RenderNote("%s", a.Note)
		}
		return RenderNote("Nothing unusual found.")
	}
	rows := make([][]string, 0, len(a.Items))
	for _, item := range a.Items {
		rows = append(rows, []string{item.Date, item.Description, item.Category, FormatUnits(item.Amount, opts.Currency), item.Severity})
	}
	return RenderTable(Table{
		Title:   "Unusual transactions",
		Headers: []string{"Date", "Description", "Category", "Amount", "Severity"},
		Rows:    rows,
	})
}

// Predictions renders the forecast months.
func Predictions(p insights.Predictions, opts Options) string {
	if len(p.Months) == 0 {
		if p.Note != "" {
			return RenderNote("%s", p.Note)
		}
		return RenderNote("Not enough history for a forecast.")
	}
	rows := make([][]string, 0, len(p.Months))
	for _, r := range p.Rows() {
		rows = append(rows, []string{r.Month, FormatUnits(r.Income, opts.Currency), FormatUnits(r.Expenses, opts.Currency), FormatUnits(r.Net, opts.Currency)})
	}
	var b strings.Builder
	b.WriteString(RenderTable(Table{
		Title:   "Forecast",
		Headers: []string{"Month", "Income", "Expenses", "Net"},
		Rows:    rows,
	}))
	b.WriteString(RenderNote("Confidence %s", FormatPercent(p.ConfidenceScore*100)))
	return b.String()
}

// Analysis renders the spending analysis totals and categories.
func Analysis(a insights.Analysis, opts Options) string {
	rows := [][]string{
		{"Income", FormatUnits(a.TotalIncome, opts.Currency)},
		{"Expenses", FormatUnits(a.TotalExpenses, opts.Currency)},
		{"Net", FormatUnits(a.NetBalance, opts.Currency)},
		{"Average monthly expense", FormatUnits(a.AvgMonthlyExpense, opts.Currency)},
		Separator,
		{"Transactions", fmt.Sprintf("%d", a.TransactionCount)},
		{"Period", fmt.Sprintf("%d days", a.AnalysisPeriodDays)},
	}
	var b strings.Builder
	b.WriteString(RenderTable(Table{Title: "Analysis", Headers: []string{"Metric", "Value"}, Rows: rows}))

	if len(a.ByCategory) > 0 {
		names := make([]string, 0, len(a.ByCategory))
		for name := range a.ByCategory {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if a.ByCategory[names[i]] != a.ByCategory[names[j]] {
				return a.ByCategory[names[i]] > a.ByCategory[names[j]]
			}
			return names[i] < names[j]
		})
		cats := make([][]string, 0, len(names))
		for _, name := range names {
			cats = append(cats, []string{name, FormatUnits(a.ByCategory[name], opts.Currency)})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable(Table{Headers: []string{"Category", "Amount"}, Rows: cats}))
	}
	return b.String()
}

func writeRejected(b *strings.Builder, rejected []*core.RecordError) {
	if len(rejected) == 0 {
		return
	}
	ids := make([]string, 0, len(rejected))
	for _, r := range rejected {
		ids = append(ids, r.ID)
	}
	b.WriteString("\n")
	b.WriteString(RenderWarning("%d transaction(s) skipped as unreadable: %s", len(rejected), strings.Join(ids, ", ")))
}
