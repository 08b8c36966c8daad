package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"budgetboard/internal/log"
	"budgetboard/internal/remote"
	"budgetboard/internal/services"
	"budgetboard/internal/session"
)

type loginData struct {
	Title string
	Email string
	Error string
}

// handleLogin shows the sign-in form and exchanges credentials for a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth == nil {
		InternalServerError("Sign-in is not configured").Write(w)
		return
	}

	if r.Method == http.MethodGet {
		if _, err := s.sessions.FromRequest(r); err == nil {
			http.Redirect(w, r, "/solo", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login_page", loginData{Title: "Sign in"})
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	email := parser.Get("email")

	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	sess, err := s.auth.Login(ctx, email, parser.Get("password"))
	if err != nil {
		atomic.AddInt64(&s.appMetrics.failedLogins, 1)
		status, msg := loginFailure(err)
		level := s.logger.WarnContext
		if status >= http.StatusInternalServerError {
			level = s.logger.ErrorContext
		}
		level(r.Context(), "Sign-in failed",
			log.FieldOperation, log.OpLogin,
			log.FieldStatusCode, status,
			log.FieldError, err.Error())
		s.render(w, r, status, "login_page", loginData{Title: "Sign in", Email: email, Error: msg})
		return
	}

	atomic.AddInt64(&s.appMetrics.logins, 1)
	s.logger.WithComponent(log.ComponentSession).InfoContext(r.Context(), "User signed in",
		log.FieldUsername, sess.Profile.Username,
		log.FieldOperation, log.OpLogin)

	s.sessions.SetCookie(w, sess)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/solo").Write(w)
		return
	}
	http.Redirect(w, r, "/solo", http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		return http.StatusUnprocessableEntity, "Enter your email and password."
	case errors.Is(err, remote.ErrInvalidCredentials), errors.Is(err, remote.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, remote.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many attempts. Please wait and try again."
	case remote.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "The budget service is unreachable. Please try again."
	default:
		return http.StatusInternalServerError, "Sign-in failed. Please try again."
	}
}

type registerData struct {
	Title    string
	Username string
	Email    string
	Age      string
	Error    string
	Fields   remote.FieldErrors
}

// handleRegister shows the sign-up form, creates the account and signs the
// new user in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth == nil {
		InternalServerError("Sign-up is not configured").Write(w)
		return
	}

	if r.Method == http.MethodGet {
		if _, err := s.sessions.FromRequest(r); err == nil {
			http.Redirect(w, r, "/solo", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "register_page", registerData{Title: "Create account"})
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	data := registerData{
		Title:    "Create account",
		Username: parser.Get("username"),
		Email:    parser.Get("email"),
		Age:      strings.TrimSpace(parser.Get("age")),
	}
	reg := remote.Registration{
		Username:  data.Username,
		Email:     data.Email,
		Password:  parser.Get("password"),
		Password2: parser.Get("password2"),
		RoleName:  remote.DefaultRole,
	}
	if data.Age != "" {
		age, err := strconv.Atoi(data.Age)
		if err != nil || age < 0 || age > 150 {
			data.Error = "Enter a valid age."
			s.render(w, r, http.StatusUnprocessableEntity, "register_page", data)
			return
		}
		reg.Age = age
	}

	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	sess, err := s.auth.Register(ctx, reg)
	if err != nil {
		status, msg := registerFailure(err)
		level := s.logger.WarnContext
		if status >= http.StatusInternalServerError {
			level = s.logger.ErrorContext
		}
		level(r.Context(), "Sign-up failed",
			log.FieldOperation, log.OpRegister,
			log.FieldStatusCode, status,
			log.FieldError, err.Error())
		data.Error = msg
		errors.As(err, &data.Fields)
		s.render(w, r, status, "register_page", data)
		return
	}

	atomic.AddInt64(&s.appMetrics.registrations, 1)
	s.logger.WithComponent(log.ComponentSession).InfoContext(r.Context(), "User registered",
		log.FieldUsername, sess.Profile.Username,
		log.FieldOperation, log.OpRegister)

	s.sessions.SetCookie(w, sess)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/solo").Write(w)
		return
	}
	http.Redirect(w, r, "/solo", http.StatusSeeOther)
}

func registerFailure(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMissingUsername), errors.Is(err, services.ErrMissingCredentials):
		return http.StatusUnprocessableEntity, "Username, email and password are required."
	case errors.Is(err, services.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, "Passwords do not match."
	case errors.Is(err, remote.ErrRegistrationRejected):
		return http.StatusUnprocessableEntity, "Please correct the errors below."
	default:
		return loginFailure(err)
	}
}

// handleLogout ends the session and returns to the sign-in page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	sess, _ := session.FromContext(r.Context())
	s.endSession(w, sess)
	s.logger.WithComponent(log.ComponentSession).InfoContext(r.Context(), "User signed out",
		log.FieldUsername, sess.Profile.Username,
		log.FieldOperation, log.OpLogout)
	s.redirectToLogin(w, r)
}
