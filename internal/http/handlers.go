package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"budgetboard/internal/log"
)

// appMetrics counts dashboard events for /metrics.
type appMetrics struct {
	uptime time.Time

	pageLoads      int64
	staleResponses int64
	authFailures   int64
	upstreamErrors int64
	rejectedRows   int64
	logins         int64
	failedLogins   int64
	registrations  int64
	syncRequests   int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name, reason string) {
		checks[name] = reason
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.dashboard == nil || s.auth == nil {
		fail("services", "not_configured")
	} else {
		checks["services"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			fail("backend", fmt.Sprintf("failed: %v", err))
		} else {
			checks["backend"] = "ok"
		}
	}

	if s.sessions != nil {
		checks["sessions"] = map[string]interface{}{"active": s.sessions.Len(), "status": "ok"}
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)
	counter("dashboard_page_loads_total", "Dashboard views rendered", atomic.LoadInt64(&m.pageLoads))
	counter("dashboard_stale_responses_total", "Loads discarded because a newer one superseded them", atomic.LoadInt64(&m.staleResponses))
	counter("dashboard_auth_failures_total", "Loads that ended the session on an expired token", atomic.LoadInt64(&m.authFailures))
	counter("dashboard_upstream_errors_total", "Loads that failed on the remote API", atomic.LoadInt64(&m.upstreamErrors))
	counter("dashboard_rejected_transactions_total", "Malformed transactions excluded from summaries", atomic.LoadInt64(&m.rejectedRows))
	counter("logins_total", "Successful sign-ins", atomic.LoadInt64(&m.logins))
	counter("logins_failed_total", "Rejected sign-ins", atomic.LoadInt64(&m.failedLogins))
	counter("registrations_total", "Accounts created", atomic.LoadInt64(&m.registrations))
	counter("sync_requests_total", "Mirror sync requests queued", atomic.LoadInt64(&m.syncRequests))
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)

	if s.sessions != nil {
		gauge("active_sessions", "Live sessions", int64(s.sessions.Len()))
	}
	if s.caches != nil {
		sizes := s.caches.Sizes()
		names := make([]string, 0, len(sizes))
		for name := range sizes {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
		fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
		for _, name := range names {
			fmt.Fprintf(w, "cache_entries{type=%q} %d\n", name, sizes[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(m.uptime).Seconds())
}

// handleIndex sends signed-in users to their dashboard and everyone else to login.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		if _, err := s.sessions.FromRequest(r); err == nil {
			http.Redirect(w, r, "/solo", http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// render executes a named template, logging and answering 500 on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"template", name,
			"error_type", log.ErrorTypeConfiguration)
		InternalServerError("templates not loaded").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err.Error(),
			"template", name,
			log.FieldOperation, log.OpRender)
	}
}
