package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetSendsTokenAndQuery(t *testing.T) {
	var gotAuth, gotQuery, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("date_from")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	})

	body, err := c.Get(context.Background(), "abc123", "/api/transactions/", url.Values{"date_from": {"2024-05-01"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("body = %q", body)
	}
	if gotAuth != "Token abc123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "2024-05-01" || gotPath != "/api/transactions/" {
		t.Errorf("path=%q query=%q", gotPath, gotQuery)
	}
}

func TestAuthScheme(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}, WithAuthScheme("Bearer"))

	if _, err := c.Get(context.Background(), "t", "/x", nil); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer t" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestEmptyTokenIsUnauthorized(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	if _, err := c.Get(context.Background(), "  ", "/x", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if called {
		t.Fatal("no request should be sent without a token")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status  int
		auth    bool
		network bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
		{http.StatusNotFound, false, true},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.Get(context.Background(), "tok", "/x", nil)
		if got := errors.Is(err, ErrUnauthorized); got != tc.auth {
			t.Errorf("status %d: auth=%v, want %v (%v)", tc.status, got, tc.auth, err)
		}
		var ne *NetworkError
		if got := errors.As(err, &ne); got != tc.network {
			t.Errorf("status %d: network=%v, want %v (%v)", tc.status, got, tc.network, err)
		}
		if tc.network && ne.StatusCode != tc.status {
			t.Errorf("status %d: NetworkError.StatusCode = %d", tc.status, ne.StatusCode)
		}
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := NewClient(base, WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(context.Background(), "tok", "/x", nil)
	if !IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestGetURLRefusesForeignHost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.GetURL(context.Background(), "tok", "https://evil.example.com/api/"); !IsNetwork(err) {
		t.Fatalf("expected NetworkError for foreign host, got %v", err)
	}
}

func TestPostEncodesJSON(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	if _, err := c.Post(context.Background(), "tok", "/api/ai/categorize/", map[string]string{"description": "pizza"}); err != nil {
		t.Fatal(err)
	}
	if got["description"] != "pizza" {
		t.Errorf("payload = %v", got)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "::"} {
		if _, err := NewClient(u); err == nil {
			t.Errorf("NewClient(%q) expected error", u)
		}
	}
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not send a token")
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":7,"username":"ann","role":"parent"},"redirect_url":"/solo"}`))
	})

	res, err := c.Login(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "tok-1" || res.User.ID != "7" || res.User.Username != "ann" {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := c.Login(context.Background(), "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := c.Login(context.Background(), "", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for empty email, got %v", err)
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"12.50","b":12.5,"c":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "12.50" || v.B != "12.5" || v.C != "" {
		t.Errorf("unexpected %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &v); err == nil {
		t.Error("expected error for bool")
	}
}

func TestRegister(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/register/" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("registration must not send a token")
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["role_name"] != DefaultRole {
			t.Errorf("role_name = %v", in["role_name"])
		}
		switch in["username"] {
		case "taken":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"username":["A user with that username already exists."],"password":"Password fields didn't match."}`))
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"token":"tok-2","user":{"id":9,"username":"cat"},"redirect_url":"/solo-dashboard"}`))
		}
	})
	ctx := context.Background()

	res, err := c.Register(ctx, Registration{Username: " cat ", Email: "cat@example.com", Password: "pw", Password2: "pw"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Token != "tok-2" || res.User.Username != "cat" {
		t.Errorf("unexpected result %+v", res)
	}

	_, err = c.Register(ctx, Registration{Username: "taken", Email: "t@example.com", Password: "a", Password2: "b"})
	var fe FieldErrors
	if !errors.As(err, &fe) || !errors.Is(err, ErrRegistrationRejected) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe["username"]) != 1 || fe["password"][0] != "Password fields didn't match." {
		t.Errorf("field errors = %v", fe)
	}

	_, err = c.Register(ctx, Registration{Username: "broken", Email: "b@example.com", Password: "a", Password2: "a"})
	if !errors.As(err, &fe) || len(fe["non_field_errors"]) != 1 {
		t.Errorf("unparseable rejection = %v", err)
	}
}
