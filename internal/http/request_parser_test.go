package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budgetboard/internal/feed"
)

func TestParseDashboardQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		wantErr  bool
		month    string
		category string
		member   string
		mode     feed.Scope
	}{
		{
			name:  "defaults",
			query: url.Values{},
			mode:  feed.Personal,
		},
		{
			name:     "all values provided",
			query:    url.Values{"month": {"2024-03"}, "category": {" Food "}, "member": {"bob"}, "view": {"family"}},
			month:    "2024-03",
			category: "Food",
			member:   "bob",
			mode:     feed.Family,
		},
		{
			name:  "unknown view falls back to personal",
			query: url.Values{"view": {"everyone"}},
			mode:  feed.Personal,
		},
		{
			name:    "invalid month",
			query:   url.Values{"month": {"March"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseDashboardQuery(tt.query)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMonth) {
					t.Fatalf("expected ErrInvalidMonth, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDashboardQuery() error = %v", err)
			}
			gotMonth := ""
			if !q.Month.IsZero() {
				gotMonth = q.Month.Format("2006-01")
			}
			if gotMonth != tt.month || q.Category != tt.category || q.Member != tt.member || q.Mode != tt.mode {
				t.Errorf("query = %+v", q)
			}
		})
	}
}

func TestDashboardQueryValues(t *testing.T) {
	q, err := ParseDashboardQuery(url.Values{"month": {"2024-03"}, "view": {"family"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := q.Values().Encode(); got != "month=2024-03&view=family" {
		t.Errorf("Values() = %q", got)
	}
	if got := (DashboardQuery{Mode: feed.Personal}).Values().Encode(); got != "" {
		t.Errorf("defaults should encode empty, got %q", got)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"GET allowed with multiple", http.MethodGet, []string{http.MethodGet, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestParseFormOrFail(t *testing.T) {
	// Valid form request
	body := "field=value"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result := ParseFormOrFail(req)
	if result != nil {
		t.Error("Expected nil for valid form, got error response")
	}

	// Verify form was parsed
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}
}

func TestRequestBodyParser_SanitizesControlCharacters(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/assistant/categorize", strings.NewReader("description=coffee%00%07+shop"))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatal(err)
	}
	if got := parser.Get("description"); got != "coffee shop" {
		t.Errorf("Get('description') = %q", got)
	}
}
