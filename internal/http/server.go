// Package http serves the htmx dashboard.
package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"budgetboard/internal/cache"
	"budgetboard/internal/log"
	"budgetboard/internal/middleware/ratelimit"
	"budgetboard/internal/middleware/security"
	"budgetboard/internal/middleware/trace"
	"budgetboard/internal/services"
	"budgetboard/internal/session"
	appweb "budgetboard/web"
)

// loadTimeout bounds one page load, including every upstream call.
const loadTimeout = 7 * time.Second

type Server struct {
	http.Server
	templates *template.Template
	dashboard *services.Dashboard
	auth      *services.AuthService
	sessions  *session.Store
	caches    *cache.Manager
	ready     func(context.Context) error
	logger    *log.Logger
	structLog *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics *appMetrics

	shutdownOnce sync.Once
}

// Options wires the server to the application services.
type Options struct {
	Dashboard *services.Dashboard
	Auth      *services.AuthService
	// Caches is reported on /readyz and /metrics. Optional.
	Caches *cache.Manager
	// Ready checks the data backend for /readyz. Optional.
	Ready     func(context.Context) error
	Currency  string
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	currency := opts.Currency
	if currency == "" {
		currency = "$"
	}

	mux := http.NewServeMux()
	detector := security.NewDetector()

	s := &Server{
		dashboard:        opts.Dashboard,
		auth:             opts.Auth,
		caches:           opts.Caches,
		ready:            opts.Ready,
		logger:           logger,
		structLog:        log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       newAppMetrics(),
	}
	if opts.Auth != nil {
		s.sessions = opts.Auth.Sessions()
	}

	t, err := appweb.ParseTemplates(templateFuncs(currency))
	if err != nil {
		logger.Error("Failed parsing templates", "error", err, "error_type", log.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/logout", s.requireSession(s.handleLogout))

	mux.HandleFunc("/solo", s.requireSession(s.handleSolo))
	mux.HandleFunc("/family", s.requireSession(s.handleFamily))
	mux.HandleFunc("/member", s.requireSession(s.handleMember))
	mux.HandleFunc("/assistant", s.requireSession(s.handleAssistant))
	mux.HandleFunc("/assistant/categorize", s.requireSession(s.handleCategorize))
	mux.HandleFunc("/refresh", s.requireSession(s.handleRefresh))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited, http.MethodPost)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a minute and try again.").Write(w)
}

// requireSession resolves the session cookie. Without a live session the
// client is sent to the login page.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil {
			InternalServerError("Sign-in is not configured").Write(w)
			return
		}
		sess, err := s.sessions.FromRequest(r)
		if err != nil {
			s.redirectToLogin(w, r)
			return
		}
		ctx := session.WithContext(r.Context(), sess)
		next(w, r.WithContext(ctx))
	}
}

// redirectToLogin uses HX-Redirect for htmx requests so the whole page
// navigates instead of swapping the login form into a view.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) endSession(w http.ResponseWriter, sess session.Session) {
	if s.auth != nil && sess.ID != "" {
		s.auth.Logout(sess)
	}
	if s.sessions != nil {
		s.sessions.ClearCookie(w)
	}
}
