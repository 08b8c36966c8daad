package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/feed"
	"budgetboard/internal/remote"
	"budgetboard/internal/session"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingUsername    = errors.New("username is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// AuthService exchanges credentials for a server-side session.
type AuthService struct {
	auth      feed.Authenticator
	directory feed.Directory
	sessions  *session.Store
	dashboard *Dashboard
}

func NewAuthService(auth feed.Authenticator, directory feed.Directory, sessions *session.Store, dashboard *Dashboard) *AuthService {
	return &AuthService{
		auth:      auth,
		directory: directory,
		sessions:  sessions,
		dashboard: dashboard,
	}
}

// Login authenticates and stores a new session.
func (a *AuthService) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.Session{}, ErrMissingCredentials
	}

	res, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	return a.start(ctx, res, email)
}

// Register signs up a new user and starts a session with the returned token.
func (a *AuthService) Register(ctx context.Context, reg remote.Registration) (session.Session, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case reg.Username == "":
		return session.Session{}, ErrMissingUsername
	case reg.Email == "" || reg.Password == "":
		return session.Session{}, ErrMissingCredentials
	case reg.Password != reg.Password2:
		return session.Session{}, ErrPasswordMismatch
	}

	res, err := a.auth.Register(ctx, reg)
	if err != nil {
		return session.Session{}, fmt.Errorf("register: %w", err)
	}
	if res.User.Username == "" {
		res.User.Username = reg.Username
	}
	return a.start(ctx, res, reg.Email)
}

// start stores a session for a fresh token. The profile comes from the
// directory when available and from the auth response otherwise.
func (a *AuthService) start(ctx context.Context, res remote.LoginResult, email string) (session.Session, error) {
	if res.Token == "" {
		return session.Session{}, fmt.Errorf("login: %w", remote.ErrInvalidCredentials)
	}

	profile := core.Profile{
		ID:       res.User.ID.String(),
		Username: res.User.Username,
		Email:    res.User.Email,
		Role:     res.User.Role,
	}
	if a.directory != nil {
		p, err := a.directory.FetchProfile(ctx, res.Token)
		switch {
		case err == nil:
			profile = mergeProfile(profile, p)
		case errors.Is(err, remote.ErrUnauthorized):
			return session.Session{}, fmt.Errorf("fetch profile: %w", err)
		}
	}
	if profile.Email == "" {
		profile.Email = email
	}
	if profile.Username == "" {
		profile.Username, _, _ = strings.Cut(email, "@")
	}

	return a.sessions.Create(res.Token, profile)
}

// Logout removes the session and everything cached for it.
func (a *AuthService) Logout(sess session.Session) {
	a.sessions.Delete(sess.ID)
	if a.dashboard != nil {
		a.dashboard.Forget(sess.ID, sess.Token)
	}
}

// Sessions returns the backing store.
func (a *AuthService) Sessions() *session.Store { return a.sessions }

func mergeProfile(base, p core.Profile) core.Profile {
	if p.ID != "" {
		base.ID = p.ID
	}
	if p.Username != "" {
		base.Username = p.Username
	}
	if p.Email != "" {
		base.Email = p.Email
	}
	if p.Role != "" {
		base.Role = p.Role
	}
	base.FamilyID = p.FamilyID
	base.Family = p.Family
	return base
}
