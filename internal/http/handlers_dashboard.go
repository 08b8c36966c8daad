package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync/atomic"

	"budgetboard/internal/core"
	"budgetboard/internal/insights"
	"budgetboard/internal/log"
	"budgetboard/internal/remote"
	"budgetboard/internal/services"
	"budgetboard/internal/session"
)

// pageData is the model shared by every dashboard template.
type pageData struct {
	Title       string
	Active      services.View
	User        core.Profile
	IsKid       bool
	HasInsights bool
	CanRefresh  bool
	Query       DashboardQuery
	QueryString string
	// URL reloads the current view with the same query.
	URL        template.URL
	RefreshURL template.URL
	View       any
}

type errorData struct {
	Title    string
	Status   int
	Message  string
	RetryURL string
	User     core.Profile
}

type loader func(ctx context.Context, req services.Request) (any, error)

func (s *Server) handleSolo(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, services.ViewSolo, "My expenses", func(ctx context.Context, req services.Request) (any, error) {
		return s.dashboard.Solo(ctx, req)
	})
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, services.ViewFamily, "Family", func(ctx context.Context, req services.Request) (any, error) {
		return s.dashboard.Family(ctx, req)
	})
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, services.ViewMember, "Me and the family", func(ctx context.Context, req services.Request) (any, error) {
		return s.dashboard.Member(ctx, req)
	})
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, services.ViewAssistant, "Assistant", func(ctx context.Context, req services.Request) (any, error) {
		return s.dashboard.Assistant(ctx, req)
	})
}

// serveView runs one dashboard load. htmx swaps get the view fragment,
// everything else gets the full page.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, view services.View, title string, load loader) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	if s.dashboard == nil {
		InternalServerError("Dashboard is not configured").Write(w)
		return
	}
	sess, _ := session.FromContext(r.Context())

	q, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, sess, http.StatusBadRequest, err.Error(), "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	model, err := load(ctx, newRequest(sess, q))
	if err != nil {
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) && r.Context().Err() == nil
		s.writeLoadError(w, r, sess, view, err, timedOut)
		return
	}

	atomic.AddInt64(&s.appMetrics.pageLoads, 1)
	atomic.AddInt64(&s.appMetrics.rejectedRows, int64(rejectedCount(model)))

	data := pageData{
		Title:       title,
		Active:      view,
		User:        sess.Profile,
		IsKid:       sess.Profile.IsKid(),
		HasInsights: s.dashboard.HasInsights(),
		CanRefresh:  s.dashboard.HasPublisher() || s.dashboard.HasInsights(),
		Query:       q,
		QueryString: q.Values().Encode(),
		URL:         viewURL(view, q),
		RefreshURL:  refreshURL(q),
		View:        model,
	}
	name := string(view) + "_page"
	if isHTMX(r) && !isBoosted(r) {
		name = string(view) + "_content"
	}
	s.render(w, r, http.StatusOK, name, data)
}

func viewURL(view services.View, q DashboardQuery) template.URL {
	u := "/" + string(view)
	if enc := q.Values().Encode(); enc != "" {
		u += "?" + enc
	}
	return template.URL(u)
}

func refreshURL(q DashboardQuery) template.URL {
	if q.Month.IsZero() {
		return "/refresh"
	}
	return template.URL("/refresh?month=" + q.Month.Format("2006-01"))
}

func newRequest(sess session.Session, q DashboardQuery) services.Request {
	return services.Request{
		SessionID: sess.ID,
		Token:     sess.Token,
		Profile:   sess.Profile,
		Month:     q.Month,
		Category:  q.Category,
		Member:    q.Member,
		Mode:      q.Mode,
	}
}

func rejectedCount(model any) int {
	switch p := model.(type) {
	case services.SoloPage:
		return len(p.Summary.Rejected)
	case services.FamilyPage:
		return len(p.Summary.Rejected)
	case services.MemberPage:
		return len(p.Summary.Rejected)
	case services.AssistantPage:
		return len(p.Balance.Rejected)
	}
	return 0
}

// writeLoadError maps a failed load to a response. A superseded load writes
// nothing into the view; an expired token ends the session. timedOut marks a
// load cut short by loadTimeout while the client was still waiting.
func (s *Server) writeLoadError(w http.ResponseWriter, r *http.Request, sess session.Session, view services.View, err error, timedOut bool) {
	switch {
	case errors.Is(err, services.ErrStale) && !timedOut:
		atomic.AddInt64(&s.appMetrics.staleResponses, 1)
		s.logger.DebugContext(r.Context(), "Discarded superseded load",
			log.FieldView, string(view),
			"error_type", log.ErrorTypeStale)
		NewHTMXResponse().NoSwap().Write(w)

	case errors.Is(err, remote.ErrUnauthorized):
		atomic.AddInt64(&s.appMetrics.authFailures, 1)
		s.logger.WarnContext(r.Context(), "Token rejected, ending session",
			log.FieldView, string(view),
			log.FieldUsername, sess.Profile.Username,
			"error_type", log.ErrorTypeAuth)
		s.endSession(w, sess)
		s.redirectToLogin(w, r)

	case errors.Is(err, services.ErrForbidden):
		s.writeError(w, r, sess, http.StatusForbidden, "You can only view your own expenses.", "")

	case timedOut, remote.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		atomic.AddInt64(&s.appMetrics.upstreamErrors, 1)
		s.logger.ErrorContext(r.Context(), "Dashboard load failed",
			log.FieldView, string(view),
			log.FieldError, err.Error(),
			"error_type", log.ErrorTypeNetwork)
		s.writeError(w, r, sess, http.StatusBadGateway,
			"The budget service could not be reached.", r.URL.RequestURI())

	default:
		s.logger.ErrorContext(r.Context(), "Dashboard load failed",
			log.FieldView, string(view),
			log.FieldError, err.Error(),
			"error_type", log.ErrorTypeInternal)
		s.writeError(w, r, sess, http.StatusInternalServerError, "Something went wrong loading this page.", r.URL.RequestURI())
	}
}

// writeError answers htmx swaps with an inline fragment and full loads with
// the error page.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, sess session.Session, status int, msg, retryURL string) {
	if isHTMX(r) && !isBoosted(r) {
		switch {
		case status == http.StatusForbidden:
			ForbiddenError(msg).Write(w)
		case retryURL != "":
			RetryableError(status, msg, retryURL).Write(w)
		default:
			ErrorResponse(status, msg).Write(w)
		}
		return
	}
	s.render(w, r, status, "error_page", errorData{
		Title:    http.StatusText(status),
		Status:   status,
		Message:  msg,
		RetryURL: retryURL,
		User:     sess.Profile,
	})
}

// handleCategorize suggests a category for a free-text description.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, _ := session.FromContext(r.Context())
	description := sanitizeInput(r.FormValue("description"))

	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	result, err := s.dashboard.Categorize(ctx, newRequest(sess, DashboardQuery{}), description)
	switch {
	case err == nil:
		s.render(w, r, http.StatusOK, "categorize_result", result)
	case errors.Is(err, insights.ErrEmptyDescription):
		UnprocessableEntityError("Enter a description to categorize.").Write(w)
	case errors.Is(err, remote.ErrUnauthorized):
		atomic.AddInt64(&s.appMetrics.authFailures, 1)
		s.endSession(w, sess)
		s.redirectToLogin(w, r)
	default:
		s.logger.ErrorContext(r.Context(), "Categorize failed",
			log.FieldError, err.Error(),
			log.FieldKind, string(insights.KindCategorization))
		ErrorResponse(http.StatusBadGateway, "The insight service could not be reached.").Write(w)
	}
}

// handleRefresh drops cached insights and queues a mirror sync when a queue
// is configured. The dashboard reloads through the dashboard:refresh event.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, _ := session.FromContext(r.Context())
	q, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	queued, err := s.dashboard.Refresh(ctx, newRequest(sess, q))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Refresh failed",
			log.FieldOperation, log.OpPublish,
			log.FieldError, err.Error())
		NewHTMXResponse().
			TriggerErrorNotification("Could not request a sync. Try again later.").
			NoSwap().
			Write(w)
		return
	}

	msg := "Dashboard refreshed."
	if queued {
		atomic.AddInt64(&s.appMetrics.syncRequests, 1)
		msg = "Sync requested. Figures will update shortly."
	}
	resp := NewHTMXResponse().TriggerDashboardRefresh().TriggerSuccessNotification(msg)
	if !q.Month.IsZero() {
		resp.TriggerMonthChanged(q.Month.Format("2006-01"))
	}
	resp.NoSwap().Write(w)
}
