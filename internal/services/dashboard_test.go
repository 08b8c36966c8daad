package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"budgetboard/internal/amqp"
	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/feed/memory"
	"budgetboard/internal/insights"
	"budgetboard/internal/log"
	"budgetboard/internal/remote"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func day(m, d int) core.Date { return core.NewDate(2024, m, d) }

func fixture() *memory.Store {
	return memory.New("Rossi",
		[]core.Member{
			{ID: "1", Username: "ann", Role: "parent"},
			{ID: "2", Username: "bob", Role: "parent"},
			{ID: "3", Username: "kid", Role: "kid"},
		},
		[]core.Transaction{
			{ID: "a1", Amount: "50", Type: core.Expense, Category: "Food", Owner: "ann", Date: day(3, 2)},
			{ID: "a2", Amount: "30", Type: core.Expense, Category: "Food", Owner: "ann", Date: day(3, 3)},
			{ID: "a3", Amount: "20", Type: core.Expense, Owner: "ann", Date: day(3, 5)},
			{ID: "a4", Amount: "1000", Type: core.Income, Category: "Salary", Owner: "ann", Date: day(3, 1)},
			{ID: "a5", Amount: "abc", Type: core.Expense, Category: "Food", Owner: "ann", Date: day(3, 6)},
			{ID: "a6", Amount: "40", Type: core.Expense, Category: "Food", Owner: "ann", Date: day(2, 10)},
			{ID: "b1", Amount: "200", Type: core.Expense, Category: "Rent", Owner: "bob", Date: day(3, 1)},
			{ID: "k1", Amount: "10", Type: core.Expense, Category: "Games", Owner: "kid", Date: day(3, 9)},
			{ID: "old", Amount: "999", Type: core.Expense, Category: "Food", Owner: "ann", Date: day(1, 9)},
		})
}

type fakeInsights struct {
	fail map[insights.Kind]error
}

func (f *fakeInsights) err(k insights.Kind) error { return f.fail[k] }

func (f *fakeInsights) Recommendations(context.Context, string) (insights.Recommendations, error) {
	return insights.Recommendations{Items: []insights.Recommendation{
		{Title: "one"}, {Title: "two"}, {Title: "three"}, {Title: "four"},
	}}, f.err(insights.KindRecommendations)
}

func (f *fakeInsights) Anomalies(context.Context, string, float64) (insights.Anomalies, error) {
	return insights.Anomalies{Count: 1}, f.err(insights.KindAnomalies)
}

func (f *fakeInsights) Predictions(context.Context, string, int) (insights.Predictions, error) {
	return insights.Predictions{Months: []string{"2024-04"}}, f.err(insights.KindPredictions)
}

func (f *fakeInsights) Analysis(context.Context, string) (insights.Analysis, error) {
	return insights.Analysis{TransactionCount: 7}, f.err(insights.KindAnalysis)
}

func (f *fakeInsights) Categorize(_ context.Context, _ string, desc string) (insights.Categorization, error) {
	if desc == "" {
		return insights.Categorization{}, insights.ErrEmptyDescription
	}
	return insights.Categorization{SuggestedCategory: "Groceries", Confidence: 0.9}, f.err(insights.KindCategorization)
}

type hookSource struct {
	next   feed.TransactionSource
	before func(ctx context.Context)
}

func (h hookSource) FetchTransactions(ctx context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	if h.before != nil {
		h.before(ctx)
	}
	return h.next.FetchTransactions(ctx, token, f)
}

type recordingPublisher struct {
	msgs []*amqp.FeedSyncMessage
	err  error
}

func (p *recordingPublisher) PublishFeedSync(_ context.Context, msg *amqp.FeedSyncMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func newDashboard(src feed.TransactionSource, dir feed.Directory, ins insights.Source, buf *bytes.Buffer) *Dashboard {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return NewDashboard(DashboardConfig{
		Transactions: src,
		Directory:    dir,
		Insights:     ins,
		Logger:       log.New(log.Config{Level: -4, Output: buf}),
		Now:          func() time.Time { return testNow },
	})
}

func annRequest() Request {
	return Request{SessionID: "s1", Token: "mem:ann", Profile: core.Profile{Username: "ann", Role: "parent"}}
}

func TestSolo(t *testing.T) {
	store := fixture()
	var logs bytes.Buffer
	d := newDashboard(store, store, &fakeInsights{}, &logs)

	page, err := d.Solo(context.Background(), annRequest())
	if err != nil {
		t.Fatalf("Solo: %v", err)
	}

	s := page.Summary
	if s.Total.Cents != 10000 || s.Count != 3 {
		t.Errorf("total = %d, count = %d; want 10000, 3", s.Total.Cents, s.Count)
	}
	if s.ByCategory["Food"].Cents != 8000 || s.ByCategory[core.UncategorizedLabel].Cents != 2000 {
		t.Errorf("ByCategory = %v", s.ByCategory)
	}
	if s.ByGroup[core.Mandatory].Cents != 8000 || s.ByGroup[core.Unexpected].Cents != 2000 {
		t.Errorf("ByGroup = %v", s.ByGroup)
	}
	if len(s.Rejected) != 1 || s.Rejected[0].ID != "a5" {
		t.Errorf("Rejected = %v", s.Rejected)
	}
	trend, ok := s.Trend("Food")
	if !ok || trend.Direction != core.Up || trend.Percent != 100 {
		t.Errorf("Food trend = %+v, %v", trend, ok)
	}
	if page.Balance.Income.Cents != 100000 {
		t.Errorf("income = %d", page.Balance.Income.Cents)
	}
	if len(page.Recommendations) != 3 {
		t.Errorf("recommendations = %d, want 3", len(page.Recommendations))
	}
	if page.Period.Key != "2024-03" || page.Period.PrevKey != "2024-02" {
		t.Errorf("period = %+v", page.Period)
	}
	if !bytes.Contains(logs.Bytes(), []byte("rejected_ids")) {
		t.Errorf("rejected records were not logged: %s", logs.String())
	}
}

func TestSoloCategoryFilter(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)

	req := annRequest()
	req.Category = "food"
	page, err := d.Solo(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if page.Summary.Total.Cents != 8000 {
		t.Errorf("filtered total = %d", page.Summary.Total.Cents)
	}
	if len(page.Categories) != 2 {
		t.Errorf("category list should ignore the filter, got %v", page.Categories)
	}
	if page.Recommendations != nil || page.InsightsError != "" {
		t.Errorf("no insight source: %+v", page)
	}
}

func TestSoloEmptyFeedIsNotAnError(t *testing.T) {
	store := memory.New("", nil, nil)
	d := newDashboard(store, store, nil, nil)

	page, err := d.Solo(context.Background(), annRequest())
	if err != nil {
		t.Fatalf("Solo: %v", err)
	}
	if !page.Summary.IsEmpty() || page.Summary.ByCategory == nil {
		t.Errorf("expected empty summary with maps, got %+v", page.Summary)
	}
}

func TestSoloInsightFailureKeepsPage(t *testing.T) {
	store := fixture()
	ins := &fakeInsights{fail: map[insights.Kind]error{
		insights.KindRecommendations: &remote.NetworkError{Op: "GET", StatusCode: http.StatusBadGateway},
	}}
	d := newDashboard(store, store, ins, nil)

	page, err := d.Solo(context.Background(), annRequest())
	if err != nil {
		t.Fatalf("Solo: %v", err)
	}
	if page.InsightsError == "" || page.Recommendations != nil {
		t.Errorf("expected insight error, got %+v", page)
	}
	if page.Summary.Count != 3 {
		t.Errorf("summary missing: %+v", page.Summary)
	}
}

func TestAuthErrorsAreTerminal(t *testing.T) {
	store := fixture()

	d := newDashboard(store, store, nil, nil)
	req := annRequest()
	req.Token = ""
	if _, err := d.Solo(context.Background(), req); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("feed auth error: got %v", err)
	}

	ins := &fakeInsights{fail: map[insights.Kind]error{insights.KindRecommendations: remote.ErrUnauthorized}}
	d = newDashboard(store, store, ins, nil)
	if _, err := d.Solo(context.Background(), annRequest()); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("insight auth error: got %v", err)
	}
}

func TestNetworkErrorSurfaces(t *testing.T) {
	src := hookSource{next: failingSource{err: &remote.NetworkError{Op: "GET", StatusCode: 503}}}
	d := newDashboard(src, nil, nil, nil)

	_, err := d.Family(context.Background(), annRequest())
	var ne *remote.NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != 503 {
		t.Errorf("expected NetworkError 503, got %v", err)
	}
}

type failingSource struct{ err error }

func (f failingSource) FetchTransactions(context.Context, string, feed.Filter) ([]core.Transaction, error) {
	return nil, f.err
}

func TestFamily(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)

	page, err := d.Family(context.Background(), annRequest())
	if err != nil {
		t.Fatal(err)
	}
	if page.Summary.Total.Cents != 31000 {
		t.Errorf("family total = %d, want 31000", page.Summary.Total.Cents)
	}
	if page.MemberCount != 3 {
		t.Errorf("member count = %d", page.MemberCount)
	}
	if page.AveragePerMember.Cents != 10333 {
		t.Errorf("average per member = %d", page.AveragePerMember.Cents)
	}
	if page.Summary.ByOwner["bob"].Cents != 20000 {
		t.Errorf("ByOwner = %v", page.Summary.ByOwner)
	}

	req := annRequest()
	req.Member = "BOB"
	page, err = d.Family(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if page.Summary.Total.Cents != 20000 || page.Summary.Count != 1 {
		t.Errorf("member filter: %+v", page.Summary)
	}
}

func TestMember(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)
	ctx := context.Background()

	page, err := d.Member(ctx, annRequest())
	if err != nil {
		t.Fatal(err)
	}
	if page.Member != "ann" || page.Summary.Total.Cents != 10000 || page.FamilyTotal.Cents != 31000 {
		t.Errorf("personal mode: %+v", page)
	}
	if page.ShareOfFamily < 32.2 || page.ShareOfFamily > 32.3 {
		t.Errorf("share = %f", page.ShareOfFamily)
	}

	req := annRequest()
	req.Mode = feed.Family
	page, err = d.Member(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if page.Summary.Total.Cents != page.FamilyTotal.Cents || page.ShareOfFamily != 100 {
		t.Errorf("family mode: %+v", page)
	}
}

func TestMemberKidRestrictions(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)
	ctx := context.Background()
	kid := Request{SessionID: "k", Token: "mem:kid", Profile: core.Profile{Username: "kid", Role: "kid"}}

	page, err := d.Member(ctx, kid)
	if err != nil {
		t.Fatal(err)
	}
	if page.CanBrowse || page.HasFamily || page.Summary.Total.Cents != 1000 {
		t.Errorf("kid page: %+v", page)
	}

	other := kid
	other.Member = "ann"
	if _, err := d.Member(ctx, other); !errors.Is(err, ErrForbidden) {
		t.Errorf("kid viewing ann: %v", err)
	}
	family := kid
	family.Mode = feed.Family
	if _, err := d.Member(ctx, family); !errors.Is(err, ErrForbidden) {
		t.Errorf("kid family mode: %v", err)
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	store := fixture()
	var d *Dashboard
	src := hookSource{next: store, before: func(context.Context) {
		// a newer load of the same view starts while this one is in flight
		d.Generations().Begin(GenerationKey("s1", string(ViewSolo)))
	}}
	d = newDashboard(src, store, nil, nil)

	if _, err := d.Solo(context.Background(), annRequest()); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	// other views and sessions are unaffected
	if _, err := d.Family(context.Background(), annRequest()); err != nil {
		t.Errorf("family load: %v", err)
	}
}

func TestCancelledLoadIsStale(t *testing.T) {
	store := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	src := hookSource{next: store, before: func(context.Context) { cancel() }}
	d := newDashboard(src, store, nil, nil)

	if _, err := d.Solo(ctx, annRequest()); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
}

func TestAssistant(t *testing.T) {
	store := fixture()
	ins := &fakeInsights{fail: map[insights.Kind]error{
		insights.KindPredictions: errors.New("model not trained"),
	}}
	d := newDashboard(store, store, ins, nil)

	page, err := d.Assistant(context.Background(), annRequest())
	if err != nil {
		t.Fatal(err)
	}
	if page.Predictions != nil || page.Errors[insights.KindPredictions] == "" {
		t.Errorf("predictions should have failed: %+v", page)
	}
	if page.Analysis == nil || page.Analysis.TransactionCount != 7 {
		t.Errorf("analysis = %+v", page.Analysis)
	}
	if page.Recommendations == nil || page.Anomalies == nil {
		t.Errorf("missing payloads: %+v", page)
	}
	if len(page.Monthly) != 3 {
		t.Errorf("monthly = %+v", page.Monthly)
	}
	if len(page.Errors) != 1 {
		t.Errorf("errors = %v", page.Errors)
	}
}

func TestAssistantWithoutInsights(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)

	page, err := d.Assistant(context.Background(), annRequest())
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Errors) != len(insights.Kinds) {
		t.Errorf("errors = %v", page.Errors)
	}
}

func TestCategorize(t *testing.T) {
	d := newDashboard(fixture(), nil, &fakeInsights{}, nil)
	ctx := context.Background()

	got, err := d.Categorize(ctx, annRequest(), "Weekly supermarket run")
	if err != nil {
		t.Fatal(err)
	}
	if got.Suggestion == nil || got.SuggestionGroup != core.Mandatory || got.DescriptionGroup != core.Mandatory {
		t.Errorf("Categorize = %+v", got)
	}

	if _, err := d.Categorize(ctx, annRequest(), ""); !errors.Is(err, insights.ErrEmptyDescription) {
		t.Errorf("empty description: %v", err)
	}

	local := newDashboard(fixture(), nil, nil, nil)
	got, err = local.Categorize(ctx, annRequest(), "cinema tickets")
	if err != nil || got.Suggestion != nil || got.Error == "" {
		t.Errorf("local only = %+v, %v", got, err)
	}
}

func TestRefresh(t *testing.T) {
	store := fixture()
	d := newDashboard(store, store, nil, nil)

	queued, err := d.Refresh(context.Background(), annRequest())
	if err != nil || queued {
		t.Fatalf("without publisher: %v, %v", queued, err)
	}

	pub := &recordingPublisher{}
	d = NewDashboard(DashboardConfig{
		Transactions: store,
		Publisher:    pub,
		Now:          func() time.Time { return testNow },
	})
	queued, err = d.Refresh(context.Background(), annRequest())
	if err != nil || !queued {
		t.Fatalf("with publisher: %v, %v", queued, err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Scope != amqp.ScopeFamily || msg.From != "2024-02-01" || msg.To != "2024-03-31" || msg.RequestedBy != "ann" {
		t.Errorf("message = %+v", msg)
	}

	pub.err = errors.New("circuit breaker is open")
	if _, err := d.Refresh(context.Background(), annRequest()); err == nil {
		t.Error("expected publish error")
	}
}

func TestForgetInvalidatesInsights(t *testing.T) {
	ins := &fakeInsights{}
	cached := insights.NewCached(ins, time.Minute, 10)
	d := newDashboard(fixture(), nil, cached, nil)

	if _, err := cached.Analysis(context.Background(), "mem:ann"); err != nil {
		t.Fatal(err)
	}
	d.Generations().Begin(GenerationKey("s1", "solo"))
	d.Forget("s1", "mem:ann")

	if d.Generations().Len() != 0 {
		t.Errorf("generations left: %d", d.Generations().Len())
	}
	if n := cached.Invalidate("mem:ann"); n != 0 {
		t.Errorf("insights still cached: %d", n)
	}
}

func TestParseMonth(t *testing.T) {
	if m, err := ParseMonth(""); err != nil || !m.IsZero() {
		t.Errorf("empty = %v, %v", m, err)
	}
	m, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatal(err)
	}
	p := MonthPeriod(m)
	if p.End.Day() != 29 || p.PrevStart.Month() != time.January || p.NextKey != "2024-03" {
		t.Errorf("period = %+v", p)
	}
	if _, err := ParseMonth("02/2024"); err == nil {
		t.Error("expected error")
	}
}

func TestSplitPeriodMatchesDayKeys(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	late := core.Transaction{ID: "1", Amount: "10", Type: core.Expense, Owner: "ann",
		Date: core.Date{Time: time.Date(2024, 4, 30, 22, 30, 0, 0, time.UTC)}}

	p := MonthPeriod(time.Date(2024, 5, 10, 0, 0, 0, 0, rome))
	cur, prev := splitPeriod([]core.Transaction{late}, p, rome)
	if len(cur) != 1 || len(prev) != 0 {
		t.Fatalf("in Rome the record belongs to May: cur=%d prev=%d", len(cur), len(prev))
	}
	if key := late.DayKey(rome); key != "2024-05-01" {
		t.Errorf("day key = %s", key)
	}

	cur, prev = splitPeriod([]core.Transaction{late}, p, nil)
	if len(cur) != 0 || len(prev) != 1 {
		t.Errorf("without a location the record stays in April: cur=%d prev=%d", len(cur), len(prev))
	}
}
