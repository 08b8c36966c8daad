package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"budgetboard/internal/remote"
)

func newClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	rc, err := remote.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return New(rc)
}

func TestInsightEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/recommendations/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"recommendations": [
			{"type": "category_alert", "title": "High Spending in Food", "priority": "high", "potential_savings": 12.5},
			{"type": "budget_tip", "title": "b", "priority": "low"},
			{"type": "budget_tip", "title": "c", "priority": "low"},
			{"type": "saving_opportunity", "title": "d", "priority": "medium"}
		], "total_potential_savings": 12.5}`))
	})
	mux.HandleFunc("/api/ai/anomalies/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("threshold"); got != "2.5" {
			t.Errorf("threshold = %q", got)
		}
		_, _ = w.Write([]byte(`{"anomalies": [{"transaction_id": 7, "amount": 400, "severity": "high", "zscore": 3.2}], "anomaly_count": 1}`))
	})
	mux.HandleFunc("/api/ai/predict/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("months_ahead"); got != "3" {
			t.Errorf("months_ahead = %q", got)
		}
		_, _ = w.Write([]byte(`{"prediction_months": ["2024-06", "2024-07"], "predicted_expenses": [100, 110], "predicted_income": [200], "confidence_score": 0.8}`))
	})
	mux.HandleFunc("/api/ai/analyze/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_expenses": 100, "by_month": {"2024-05": {"income": 200, "expenses": 100, "net": 100}}, "top_categories": [["Food", 80]]}`))
	})
	mux.HandleFunc("/api/ai/categorize/", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["description"] != "Pizza night" {
			t.Errorf("description = %q", in["description"])
		}
		_, _ = w.Write([]byte(`{"suggested_category": "Food & Dining", "confidence": 0.9, "all_categories": [{"name": "Food & Dining", "confidence": 0.9}]}`))
	})
	c := newClient(t, mux)
	ctx := context.Background()

	recs, err := c.Recommendations(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs.Top(3)) != 3 || recs.Items[0].Priority != "high" || recs.TotalPotentialSavings != 12.5 {
		t.Errorf("unexpected recommendations %+v", recs)
	}

	an, err := c.Anomalies(ctx, "tok", 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if an.Count != 1 || an.Items[0].TransactionID != "7" || an.Items[0].Severity != "high" {
		t.Errorf("unexpected anomalies %+v", an)
	}

	pr, err := c.Predictions(ctx, "tok", 0)
	if err != nil {
		t.Fatal(err)
	}
	rows := pr.Rows()
	if len(rows) != 2 || rows[0].Net != 100 || rows[1].Income != 0 || rows[1].Net != -110 {
		t.Errorf("unexpected prediction rows %+v", rows)
	}

	a, err := c.Analysis(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if a.ByMonth["2024-05"].Net != 100 || len(a.TopCategories) != 1 {
		t.Errorf("unexpected analysis %+v", a)
	}

	cat, err := c.Categorize(ctx, "tok", "  Pizza night ")
	if err != nil {
		t.Fatal(err)
	}
	if cat.SuggestedCategory != "Food & Dining" {
		t.Errorf("unexpected categorization %+v", cat)
	}
	if _, err := c.Categorize(ctx, "tok", " "); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestInsightErrorsPropagate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/recommendations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/ai/anomalies/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newClient(t, mux)

	if _, err := c.Recommendations(context.Background(), "tok"); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.Anomalies(context.Background(), "tok", 0); !remote.IsNetwork(err) {
		t.Errorf("expected NetworkError, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("anomalies"); !ok || k != KindAnomalies {
		t.Errorf("got %q %v", k, ok)
	}
	if _, ok := ParseKind("horoscope"); ok {
		t.Error("unexpected kind accepted")
	}
}
