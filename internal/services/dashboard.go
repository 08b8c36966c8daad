// Package services builds the dashboard page models. Each load fetches the
// transaction feed and the optional insights concurrently, aggregates the
// result and discards it when a newer load for the same view has started.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetboard/internal/aggregate"
	"budgetboard/internal/amqp"
	"budgetboard/internal/classify"
	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/insights"
	"budgetboard/internal/log"
	"budgetboard/internal/remote"
)

// View names a dashboard page.
type View string

const (
	ViewSolo      View = "solo"
	ViewFamily    View = "family"
	ViewMember    View = "member"
	ViewAssistant View = "assistant"
)

const (
	topRecommendations = 3
	assistantMonths    = 12
)

var ErrForbidden = errors.New("not allowed to view other members")

// Publisher queues mirror sync requests.
type Publisher interface {
	PublishFeedSync(ctx context.Context, msg *amqp.FeedSyncMessage) error
}

// Request carries everything a page load needs. The token is passed
// explicitly to every adapter call.
type Request struct {
	SessionID string
	Token     string
	Profile   core.Profile
	Month     time.Time // any instant in the month to show; zero is the current month
	Category  string
	Member    string
	Mode      feed.Scope
}

// DashboardConfig wires a Dashboard. Insights, Directory and Publisher are optional.
type DashboardConfig struct {
	Transactions feed.TransactionSource
	Directory    feed.Directory
	Insights     insights.Source
	Classifier   *classify.Classifier
	Publisher    Publisher
	Logger       *log.Logger
	Location     *time.Location
	Now          func() time.Time
}

// Dashboard builds page models for every view.
type Dashboard struct {
	transactions feed.TransactionSource
	directory    feed.Directory
	insights     insights.Source
	classifier   *classify.Classifier
	agg          *aggregate.Aggregator
	publisher    Publisher
	gens         *Generations
	logger       *log.StructuredLogger
	loc          *time.Location
	now          func() time.Time
}

func NewDashboard(cfg DashboardConfig) *Dashboard {
	c := cfg.Classifier
	if c == nil {
		c = classify.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dashboard{
		transactions: cfg.Transactions,
		directory:    cfg.Directory,
		insights:     cfg.Insights,
		classifier:   c,
		agg:          aggregate.New(c, aggregate.WithLocation(cfg.Location)),
		publisher:    cfg.Publisher,
		gens:         NewGenerations(),
		logger:       log.NewStructuredLogger(logger),
		loc:          cfg.Location,
		now:          now,
	}
}

// Generations exposes the stale-load table.
func (d *Dashboard) Generations() *Generations { return d.gens }

// HasInsights reports whether an insight source is configured.
func (d *Dashboard) HasInsights() bool { return d.insights != nil }

// HasPublisher reports whether refreshes are queued to the worker.
func (d *Dashboard) HasPublisher() bool { return d.publisher != nil }

// Period is a calendar month and the month before it.
type Period struct {
	Key       string // YYYY-MM
	Label     string // "March 2024"
	Start     time.Time
	End       time.Time
	PrevStart time.Time
	PrevEnd   time.Time
	PrevKey   string
	NextKey   string
}

// MonthPeriod returns the month containing t.
func MonthPeriod(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	prev := start.AddDate(0, -1, 0)
	return Period{
		Key:       start.Format("2006-01"),
		Label:     start.Format("January 2006"),
		Start:     start,
		End:       start.AddDate(0, 1, -1),
		PrevStart: prev,
		PrevEnd:   start.AddDate(0, 0, -1),
		PrevKey:   prev.Format("2006-01"),
		NextKey:   start.AddDate(0, 1, 0).Format("2006-01"),
	}
}

// ParseMonth parses YYYY-MM. An empty string is the zero time.
func ParseMonth(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q", s)
	}
	return t, nil
}

func (d *Dashboard) period(month time.Time) Period {
	if month.IsZero() {
		month = d.now()
		if d.loc != nil {
			month = month.In(d.loc)
		}
	}
	return MonthPeriod(month)
}

// SoloPage is the signed-in user's own spending for one month.
type SoloPage struct {
	Period          Period
	Summary         core.Summary // expenses, compared with the previous month
	Balance         core.Balance // income against expenses for the month
	Category        string
	Categories      []string
	Recommendations []insights.Recommendation
	InsightsError   string
}

// FamilyPage is the whole family's spending for one month.
type FamilyPage struct {
	Period           Period
	Family           string
	Summary          core.Summary
	Balance          core.Balance
	Members          []core.Member
	MemberCount      int
	AveragePerMember core.Money
	Member           string
}

// MemberPage compares one member, or the family, with the family total.
type MemberPage struct {
	Period        Period
	Mode          feed.Scope
	Member        string
	Members       []core.Member
	CanBrowse     bool
	Summary       core.Summary
	FamilyTotal   core.Money
	HasFamily     bool
	ShareOfFamily float64
}

// AssistantPage gathers the insight payloads with a local monthly overview.
// A nil payload means it failed or is not configured; see Errors.
type AssistantPage struct {
	Monthly         []core.MonthBalance
	Balance         core.Balance
	Analysis        *insights.Analysis
	Predictions     *insights.Predictions
	Recommendations *insights.Recommendations
	Anomalies       *insights.Anomalies
	Errors          map[insights.Kind]string
}

// ErrorFor returns the failure message for one insight kind, if any.
func (p AssistantPage) ErrorFor(kind string) string {
	return p.Errors[insights.Kind(kind)]
}

// Solo loads the personal view.
func (d *Dashboard) Solo(ctx context.Context, req Request) (SoloPage, error) {
	key, gen := d.begin(req, ViewSolo)
	p := d.period(req.Month)
	filter := feed.Filter{Scope: feed.Personal, From: p.PrevStart, To: p.End, Owner: req.Profile.Username}

	var (
		txs    []core.Transaction
		recs   insights.Recommendations
		recErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = d.fetch(gctx, req.Token, filter)
		return err
	})
	if d.insights != nil {
		g.Go(func() error {
			recs, recErr = d.insights.Recommendations(gctx, req.Token)
			return terminal(recErr)
		})
	}
	if err := g.Wait(); err != nil {
		return SoloPage{}, d.staleOr(ctx, key, gen, err)
	}
	if err := d.gens.Check(ctx, key, gen); err != nil {
		return SoloPage{}, err
	}

	cur, prev := splitPeriod(txs, p, d.loc)
	include := aggregate.And(aggregate.Expenses, aggregate.InCategory(req.Category))
	page := SoloPage{
		Period:     p,
		Summary:    d.agg.Compare(cur, prev, include),
		Balance:    aggregate.Balance(cur),
		Category:   req.Category,
		Categories: categoryNames(d.agg.Aggregate(cur, aggregate.Expenses)),
	}
	if recErr != nil {
		page.InsightsError = d.insightFailure(ctx, insights.KindRecommendations, recErr)
	} else {
		page.Recommendations = recs.Top(topRecommendations)
	}
	d.report(ctx, ViewSolo, gen, page.Summary)
	return page, nil
}

// Family loads the family view, optionally narrowed to one member.
func (d *Dashboard) Family(ctx context.Context, req Request) (FamilyPage, error) {
	key, gen := d.begin(req, ViewFamily)
	p := d.period(req.Month)
	filter := feed.Filter{Scope: feed.Family, From: p.PrevStart, To: p.End}

	var (
		txs     []core.Transaction
		members []core.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = d.fetch(gctx, req.Token, filter)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = d.members(gctx, req.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		return FamilyPage{}, d.staleOr(ctx, key, gen, err)
	}
	if err := d.gens.Check(ctx, key, gen); err != nil {
		return FamilyPage{}, err
	}

	cur, prev := splitPeriod(txs, p, d.loc)
	summary := d.agg.Compare(cur, prev, aggregate.And(aggregate.Expenses, aggregate.OwnedBy(req.Member)))
	count := len(members)
	if count == 0 {
		count = len(summary.ByOwner)
	}
	page := FamilyPage{
		Period:      p,
		Family:      req.Profile.Family,
		Summary:     summary,
		Balance:     aggregate.Balance(cur),
		Members:     members,
		MemberCount: count,
		Member:      req.Member,
	}
	if count > 0 {
		page.AveragePerMember = core.Money{Cents: summary.Total.Cents / int64(count)}
	}
	d.report(ctx, ViewFamily, gen, page.Summary)
	return page, nil
}

// Member loads the member comparison view. Kids only ever see themselves.
func (d *Dashboard) Member(ctx context.Context, req Request) (MemberPage, error) {
	self := req.Profile.Username
	mode := req.Mode
	if mode != feed.Family {
		mode = feed.Personal
	}
	member := req.Member
	if member == "" || mode == feed.Family {
		member = self
	}
	kid := req.Profile.IsKid()
	if kid && (mode == feed.Family || !sameUser(member, self)) {
		return MemberPage{}, ErrForbidden
	}

	key, gen := d.begin(req, ViewMember)
	p := d.period(req.Month)
	filter := feed.Filter{Scope: feed.Family, From: p.PrevStart, To: p.End}
	if kid {
		filter = feed.Filter{Scope: feed.Personal, From: p.PrevStart, To: p.End, Owner: self}
	}

	var (
		txs     []core.Transaction
		members []core.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = d.fetch(gctx, req.Token, filter)
		return err
	})
	if !kid {
		g.Go(func() error {
			var err error
			members, err = d.members(gctx, req.Token)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return MemberPage{}, d.staleOr(ctx, key, gen, err)
	}
	if err := d.gens.Check(ctx, key, gen); err != nil {
		return MemberPage{}, err
	}

	cur, prev := splitPeriod(txs, p, d.loc)
	include := aggregate.Predicate(aggregate.Expenses)
	if mode == feed.Personal {
		include = aggregate.And(aggregate.Expenses, aggregate.OwnedBy(member))
	}
	page := MemberPage{
		Period:    p,
		Mode:      mode,
		Member:    member,
		Members:   members,
		CanBrowse: !kid,
		Summary:   d.agg.Compare(cur, prev, include),
		HasFamily: !kid,
	}
	if page.HasFamily {
		page.FamilyTotal = d.agg.Aggregate(cur, aggregate.Expenses).Total
		page.ShareOfFamily = core.Ratio(page.Summary.Total, page.FamilyTotal)
	}
	d.report(ctx, ViewMember, gen, page.Summary)
	return page, nil
}

// Assistant loads the insight view. Insight failures are reported per kind
// and never fail the page; an expired token does.
func (d *Dashboard) Assistant(ctx context.Context, req Request) (AssistantPage, error) {
	key, gen := d.begin(req, ViewAssistant)
	p := d.period(req.Month)
	from := p.Start.AddDate(0, -(assistantMonths - 1), 0)
	filter := feed.Filter{Scope: feed.Personal, From: from, To: p.End, Owner: req.Profile.Username}

	page := AssistantPage{Errors: map[insights.Kind]string{}}
	var (
		txs      []core.Transaction
		analysis insights.Analysis
		preds    insights.Predictions
		recs     insights.Recommendations
		anoms    insights.Anomalies
		errs     [4]error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = d.fetch(gctx, req.Token, filter)
		return err
	})
	if d.insights != nil {
		g.Go(func() error {
			analysis, errs[0] = d.insights.Analysis(gctx, req.Token)
			return terminal(errs[0])
		})
		g.Go(func() error {
			preds, errs[1] = d.insights.Predictions(gctx, req.Token, insights.DefaultMonthsAhead)
			return terminal(errs[1])
		})
		g.Go(func() error {
			recs, errs[2] = d.insights.Recommendations(gctx, req.Token)
			return terminal(errs[2])
		})
		g.Go(func() error {
			anoms, errs[3] = d.insights.Anomalies(gctx, req.Token, insights.DefaultThreshold)
			return terminal(errs[3])
		})
	}
	if err := g.Wait(); err != nil {
		return AssistantPage{}, d.staleOr(ctx, key, gen, err)
	}
	if err := d.gens.Check(ctx, key, gen); err != nil {
		return AssistantPage{}, err
	}

	page.Monthly = aggregate.Monthly(txs, d.loc)
	page.Balance = aggregate.Balance(txs)
	d.logger.LogRejected(ctx, string(ViewAssistant), page.Balance.Rejected)

	if d.insights == nil {
		for _, k := range insights.Kinds {
			page.Errors[k] = "Insights are not configured."
		}
		return page, nil
	}

	kinds := []insights.Kind{insights.KindAnalysis, insights.KindPredictions, insights.KindRecommendations, insights.KindAnomalies}
	for i, k := range kinds {
		if errs[i] != nil {
			page.Errors[k] = d.insightFailure(ctx, k, errs[i])
		}
	}
	if errs[0] == nil {
		page.Analysis = &analysis
	}
	if errs[1] == nil {
		page.Predictions = &preds
	}
	if errs[2] == nil {
		page.Recommendations = &recs
	}
	if errs[3] == nil {
		page.Anomalies = &anoms
	}
	return page, nil
}

// Categorized pairs the remote category suggestion with local budget groups.
type Categorized struct {
	Description      string
	Suggestion       *insights.Categorization
	SuggestionGroup  core.BudgetGroup
	DescriptionGroup core.BudgetGroup
	Error            string
}

// Categorize asks the insight service for a category and classifies both the
// suggestion and the raw description locally.
func (d *Dashboard) Categorize(ctx context.Context, req Request, description string) (Categorized, error) {
	out := Categorized{
		Description:      description,
		DescriptionGroup: d.classifier.Classify(description),
	}
	if d.insights == nil {
		out.Error = "Insights are not configured."
		return out, nil
	}
	c, err := d.insights.Categorize(ctx, req.Token, description)
	if err != nil {
		if terminal(err) != nil || errors.Is(err, insights.ErrEmptyDescription) {
			return out, err
		}
		out.Error = d.insightFailure(ctx, insights.KindCategorization, err)
		return out, nil
	}
	out.Suggestion = &c
	out.SuggestionGroup = d.classifier.Classify(c.SuggestedCategory)
	return out, nil
}

// Refresh drops cached insights for the token and, when a queue is
// configured, asks the worker to re-mirror the current period. It reports
// whether a sync request was queued.
func (d *Dashboard) Refresh(ctx context.Context, req Request) (bool, error) {
	if inv, ok := d.insights.(interface{ Invalidate(string) int }); ok {
		inv.Invalidate(req.Token)
	}
	if d.publisher == nil {
		return false, nil
	}
	p := d.period(req.Month)
	scope := amqp.ScopeFamily
	if req.Profile.IsKid() {
		scope = amqp.ScopePersonal
	}
	msg := amqp.NewFeedSyncMessage(scope, p.PrevStart, p.End, req.Profile.Username)
	if err := d.publisher.PublishFeedSync(ctx, msg); err != nil {
		return false, fmt.Errorf("queue feed sync: %w", err)
	}
	return true, nil
}

// Forget drops per-session state on logout.
func (d *Dashboard) Forget(sessionID, token string) {
	d.gens.Forget(sessionID)
	if inv, ok := d.insights.(interface{ Invalidate(string) int }); ok {
		inv.Invalidate(token)
	}
}

func (d *Dashboard) begin(req Request, v View) (string, uint64) {
	key := GenerationKey(req.SessionID, string(v))
	return key, d.gens.Begin(key)
}

// staleOr prefers ErrStale so superseded loads never surface their errors.
func (d *Dashboard) staleOr(ctx context.Context, key string, gen uint64, err error) error {
	if d.gens.Check(ctx, key, gen) != nil {
		return ErrStale
	}
	return err
}

func (d *Dashboard) fetch(ctx context.Context, token string, f feed.Filter) ([]core.Transaction, error) {
	if d.transactions == nil {
		return nil, errors.New("no transaction source configured")
	}
	txs, err := d.transactions.FetchTransactions(ctx, token, f)
	if err != nil {
		return nil, fmt.Errorf("fetch %s transactions: %w", f.Scope, err)
	}
	return txs, nil
}

// members returns the family directory. Only an expired token is fatal.
func (d *Dashboard) members(ctx context.Context, token string) ([]core.Member, error) {
	if d.directory == nil {
		return nil, nil
	}
	m, err := d.directory.FetchMembers(ctx, token)
	if err != nil {
		if terminal(err) != nil {
			return nil, err
		}
		d.logger.LogError(ctx, "Family members unavailable", err, log.ComponentFeed, log.OpFetch, nil)
		return nil, nil
	}
	return m, nil
}

func (d *Dashboard) insightFailure(ctx context.Context, kind insights.Kind, err error) string {
	fields := log.NewFields()
	fields[log.FieldKind] = string(kind)
	d.logger.LogError(ctx, "Insight fetch failed", err, log.ComponentInsights, log.OpFetch, fields)
	if remote.IsNetwork(err) {
		return "The insight service is unavailable right now."
	}
	return "Insights could not be loaded."
}

func (d *Dashboard) report(ctx context.Context, v View, gen uint64, s core.Summary) {
	d.logger.LogSummary(ctx, string(v), gen, s)
	d.logger.LogRejected(ctx, string(v), s.Rejected)
}

// terminal keeps only errors that must fail the whole load.
func terminal(err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		return err
	}
	return nil
}

// splitPeriod buckets by calendar day in loc, the location the aggregator keys days in.
func splitPeriod(txs []core.Transaction, p Period, loc *time.Location) (cur, prev []core.Transaction) {
	inCur := aggregate.BetweenIn(loc, p.Start, p.End)
	inPrev := aggregate.BetweenIn(loc, p.PrevStart, p.PrevEnd)
	for _, t := range txs {
		switch {
		case inCur(t):
			cur = append(cur, t)
		case inPrev(t):
			prev = append(prev, t)
		}
	}
	return cur, prev
}

func categoryNames(s core.Summary) []string {
	cats := s.Categories()
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

func sameUser(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
