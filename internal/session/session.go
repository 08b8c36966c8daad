// Package session keeps API tokens server side. The browser only holds an
// opaque session id cookie; handlers resolve it to a Session and pass the
// token explicitly to every feed and insight call.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"budgetboard/internal/cache"
	"budgetboard/internal/core"
)

// CookieName is the cookie carrying the session id.
const CookieName = "budgetboard_session"

const defaultMaxSessions = 10000

var ErrNoSession = errors.New("no session")

// Session is one logged-in browser.
type Session struct {
	ID        string
	Token     string
	Profile   core.Profile
	CreatedAt time.Time
}

// Store maps session ids to sessions with a sliding TTL.
type Store struct {
	items  *cache.LRUCache[Session]
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type options struct {
	secure      bool
	maxSessions int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithSecureCookies marks cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(o *options) { o.secure = secure }
}

// WithMaxSessions bounds how many sessions are kept.
func WithMaxSessions(n int) Option {
	return func(o *options) { o.maxSessions = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	o := options{maxSessions: defaultMaxSessions, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		items:  cache.NewLRUCache[Session](o.maxSessions, ttl, cache.WithClock(o.now)),
		ttl:    ttl,
		secure: o.secure,
		now:    o.now,
	}
}

// Cache exposes the backing cache for registration with a cache.Manager.
func (s *Store) Cache() cache.Cleaner { return s.items }

// Create stores a new session for token and returns it.
func (s *Store) Create(token string, profile core.Profile) (Session, error) {
	if token == "" {
		return Session{}, errors.New("empty token")
	}
	sess := Session{
		ID:        uuid.NewString(),
		Token:     token,
		Profile:   profile,
		CreatedAt: s.now(),
	}
	s.items.Set(sess.ID, sess)
	return sess, nil
}

// Get returns the session for id and extends its lifetime.
func (s *Store) Get(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}
	sess, ok := s.items.Get(id)
	if !ok {
		return Session{}, false
	}
	s.items.Set(id, sess)
	return sess, true
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.items.Delete(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int { return s.items.Size() }

// FromRequest resolves the request cookie to a session.
func (s *Store) FromRequest(r *http.Request) (Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}, ErrNoSession
	}
	sess, ok := s.Get(c.Value)
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// SetCookie writes the session cookie.
func (s *Store) SetCookie(w http.ResponseWriter, sess Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey struct{}

// WithContext stores sess in ctx.
func WithContext(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by WithContext.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(Session)
	return sess, ok
}
