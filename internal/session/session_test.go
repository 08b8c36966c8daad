package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budgetboard/internal/core"
)

func TestStoreCreateGetDelete(t *testing.T) {
	s := NewStore(time.Hour)

	if _, err := s.Create("", core.Profile{}); err == nil {
		t.Fatal("expected error for empty token")
	}

	sess, err := s.Create("tok", core.Profile{Username: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || sess.ID == "tok" {
		t.Fatalf("session id must be opaque, got %q", sess.ID)
	}

	got, ok := s.Get(sess.ID)
	if !ok || got.Token != "tok" || got.Profile.Username != "alice" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	s.Delete(sess.ID)
	if _, ok := s.Get(sess.ID); ok {
		t.Error("session still present after Delete")
	}
	if _, ok := s.Get(""); ok {
		t.Error("empty id must not resolve")
	}
}

func TestStoreSlidingExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewStore(10*time.Minute, WithClock(clock))

	sess, _ := s.Create("tok", core.Profile{})

	now = now.Add(8 * time.Minute)
	if _, ok := s.Get(sess.ID); !ok {
		t.Fatal("session expired too early")
	}

	now = now.Add(8 * time.Minute)
	if _, ok := s.Get(sess.ID); !ok {
		t.Fatal("Get did not extend the session")
	}

	now = now.Add(11 * time.Minute)
	if _, ok := s.Get(sess.ID); ok {
		t.Fatal("session should have expired")
	}
}

func TestCookieRoundTrip(t *testing.T) {
	s := NewStore(time.Hour, WithSecureCookies(true))
	sess, _ := s.Create("tok", core.Profile{Username: "bob"})

	rec := httptest.NewRecorder()
	s.SetCookie(rec, sess)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || !c.HttpOnly || !c.Secure || c.Value != sess.ID {
		t.Errorf("unexpected cookie %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/solo", nil)
	req.AddCookie(c)
	got, err := s.FromRequest(req)
	if err != nil || got.Token != "tok" {
		t.Fatalf("FromRequest = %+v, %v", got, err)
	}

	rec = httptest.NewRecorder()
	s.ClearCookie(rec)
	if cleared := rec.Result().Cookies(); len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("ClearCookie did not expire cookie: %+v", cleared)
	}
}

func TestFromRequestWithoutSession(t *testing.T) {
	s := NewStore(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := s.FromRequest(req); !errors.Is(err, ErrNoSession) {
		t.Errorf("no cookie: err = %v", err)
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	if _, err := s.FromRequest(req); !errors.Is(err, ErrNoSession) {
		t.Errorf("unknown id: err = %v", err)
	}
}

func TestMaxSessions(t *testing.T) {
	s := NewStore(time.Hour, WithMaxSessions(2))
	first, _ := s.Create("a", core.Profile{})
	s.Create("b", core.Profile{})
	s.Create("c", core.Profile{})

	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.Get(first.ID); ok {
		t.Error("oldest session should have been evicted")
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no session in empty context")
	}
	ctx := WithContext(context.Background(), Session{ID: "x", Token: "t"})
	got, ok := FromContext(ctx)
	if !ok || got.Token != "t" {
		t.Errorf("FromContext = %+v, %v", got, ok)
	}
}
