package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetboard/internal/core"
	"budgetboard/internal/remote"
	"budgetboard/internal/session"
)

type stubAuth struct {
	res remote.LoginResult
	err error
}

func (s stubAuth) Login(context.Context, string, string) (remote.LoginResult, error) {
	return s.res, s.err
}

func (s stubAuth) Register(context.Context, remote.Registration) (remote.LoginResult, error) {
	return s.res, s.err
}

type stubDirectory struct {
	profile core.Profile
	err     error
}

func (s stubDirectory) FetchProfile(context.Context, string) (core.Profile, error) {
	return s.profile, s.err
}

func (s stubDirectory) FetchMembers(context.Context, string) ([]core.Member, error) {
	return nil, s.err
}

func TestLoginWithMemoryStore(t *testing.T) {
	store := fixture()
	sessions := session.NewStore(time.Hour)
	a := NewAuthService(store, store, sessions, nil)

	sess, err := a.Login(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token != "mem:ann" || sess.Profile.Username != "ann" || sess.Profile.Family != "Rossi" {
		t.Errorf("session = %+v", sess)
	}
	if sess.Profile.Email != "ann@example.com" {
		t.Errorf("email = %q", sess.Profile.Email)
	}
	if _, ok := sessions.Get(sess.ID); !ok {
		t.Error("session was not stored")
	}
}

func TestLoginMergesDirectoryProfile(t *testing.T) {
	auth := stubAuth{res: remote.LoginResult{
		Token: "tok",
		User:  remote.LoginUser{ID: "7", Username: "ann", Email: "ann@example.com", Role: "parent"},
	}}
	dir := stubDirectory{profile: core.Profile{Username: "ann", FamilyID: "3", Family: "Rossi"}}
	a := NewAuthService(auth, dir, session.NewStore(time.Hour), nil)

	sess, err := a.Login(context.Background(), "ann@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	p := sess.Profile
	if p.ID != "7" || p.Role != "parent" || p.Family != "Rossi" || p.FamilyID != "3" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoginDirectoryFailures(t *testing.T) {
	auth := stubAuth{res: remote.LoginResult{Token: "tok", User: remote.LoginUser{Username: "ann"}}}

	a := NewAuthService(auth, stubDirectory{err: &remote.NetworkError{Op: "GET", StatusCode: 500}}, session.NewStore(time.Hour), nil)
	sess, err := a.Login(context.Background(), "ann@example.com", "pw")
	if err != nil || sess.Profile.Username != "ann" {
		t.Errorf("network failure should fall back to login profile: %+v, %v", sess, err)
	}

	a = NewAuthService(auth, stubDirectory{err: remote.ErrUnauthorized}, session.NewStore(time.Hour), nil)
	if _, err := a.Login(context.Background(), "ann@example.com", "pw"); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	sessions := session.NewStore(time.Hour)

	a := NewAuthService(stubAuth{}, nil, sessions, nil)
	if _, err := a.Login(context.Background(), " ", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("blank email: %v", err)
	}
	if _, err := a.Login(context.Background(), "a@b.c", "pw"); !errors.Is(err, remote.ErrInvalidCredentials) {
		t.Errorf("empty token: %v", err)
	}

	a = NewAuthService(stubAuth{err: remote.ErrInvalidCredentials}, nil, sessions, nil)
	if _, err := a.Login(context.Background(), "a@b.c", "bad"); !errors.Is(err, remote.ErrInvalidCredentials) {
		t.Errorf("rejected credentials: %v", err)
	}
	if sessions.Len() != 0 {
		t.Errorf("no session should be created, have %d", sessions.Len())
	}
}

func TestLogout(t *testing.T) {
	store := fixture()
	sessions := session.NewStore(time.Hour)
	d := newDashboard(store, store, nil, nil)
	a := NewAuthService(store, store, sessions, d)

	sess, err := a.Login(context.Background(), "ann@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	d.Generations().Begin(GenerationKey(sess.ID, string(ViewSolo)))

	a.Logout(sess)

	if _, ok := sessions.Get(sess.ID); ok {
		t.Error("session still present")
	}
	if d.Generations().Len() != 0 {
		t.Error("generations not forgotten")
	}
}

func TestRegisterStartsSession(t *testing.T) {
	store := fixture()
	sessions := session.NewStore(time.Hour)
	a := NewAuthService(store, store, sessions, nil)

	sess, err := a.Register(context.Background(), remote.Registration{
		Username: " cat ", Email: "cat@example.com", Password: "pw", Password2: "pw",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.Token != "mem:cat" || sess.Profile.Username != "cat" || sess.Profile.Email != "cat@example.com" {
		t.Errorf("session = %+v", sess)
	}
	if sess.Profile.Role != remote.DefaultRole {
		t.Errorf("role = %q", sess.Profile.Role)
	}
	if _, ok := sessions.Get(sess.ID); !ok {
		t.Error("session was not stored")
	}
}

func TestRegisterRejections(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	a := NewAuthService(stubAuth{res: remote.LoginResult{Token: "tok"}}, nil, sessions, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  remote.Registration
		want error
	}{
		{"no username", remote.Registration{Email: "a@b.c", Password: "pw", Password2: "pw"}, ErrMissingUsername},
		{"no email", remote.Registration{Username: "a", Password: "pw", Password2: "pw"}, ErrMissingCredentials},
		{"no password", remote.Registration{Username: "a", Email: "a@b.c"}, ErrMissingCredentials},
		{"mismatch", remote.Registration{Username: "a", Email: "a@b.c", Password: "pw", Password2: "wp"}, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Register(ctx, tt.reg); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	a = NewAuthService(stubAuth{err: remote.FieldErrors{"username": {"taken"}}}, nil, sessions, nil)
	_, err := a.Register(ctx, remote.Registration{Username: "a", Email: "a@b.c", Password: "pw", Password2: "pw"})
	if !errors.Is(err, remote.ErrRegistrationRejected) {
		t.Errorf("upstream rejection: %v", err)
	}
	if sessions.Len() != 0 {
		t.Errorf("no session should be created, have %d", sessions.Len())
	}
}
