package insights

import "budgetboard/internal/remote"

// Kind names an insight endpoint.
type Kind string

const (
	KindRecommendations Kind = "recommendations"
	KindAnomalies       Kind = "anomalies"
	KindPredictions     Kind = "predictions"
	KindAnalysis        Kind = "analysis"
	KindCategorization  Kind = "categorization"
)

// Kinds lists the kinds that can be fetched with a GET.
var Kinds = []Kind{KindRecommendations, KindAnomalies, KindPredictions, KindAnalysis}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range append(Kinds, KindCategorization) {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Recommendation is one suggestion from the insight service.
type Recommendation struct {
	Type             string  `json:"type"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	PotentialSavings float64 `json:"potential_savings"`
	Priority         string  `json:"priority"`
}

// Recommendations is the recommendations payload.
type Recommendations struct {
	Items                 []Recommendation `json:"recommendations"`
	TotalPotentialSavings float64          `json:"total_potential_savings"`
}

// Top returns at most n recommendations in the order received.
func (r Recommendations) Top(n int) []Recommendation {
	if len(r.Items) <= n {
		return r.Items
	}
	return r.Items[:n]
}

// Anomaly is an unusual transaction flagged by the insight service.
type Anomaly struct {
	TransactionID remote.FlexString `json:"transaction_id"`
	Date          string            `json:"date"`
	Amount        float64           `json:"amount"`
	Category      string            `json:"category"`
	Description   string            `json:"description"`
	Reason        string            `json:"reason"`
	Severity      string            `json:"severity"`
	ZScore        float64           `json:"zscore"`
}

// Anomalies is the anomalies payload.
type Anomalies struct {
	Items           []Anomaly `json:"anomalies"`
	DetectionMethod string    `json:"detection_method"`
	Count           int       `json:"anomaly_count"`
	Note            string    `json:"note,omitempty"`
}

// Predictions is the forecast payload.
type Predictions struct {
	Months            []string  `json:"prediction_months"`
	PredictedExpenses []float64 `json:"predicted_expenses"`
	PredictedIncome   []float64 `json:"predicted_income"`
	PredictedNet      []float64 `json:"predicted_net"`
	ConfidenceScore   float64   `json:"confidence_score"`
	ModelAccuracy     float64   `json:"model_accuracy"`
	HistoricalMonths  int       `json:"historical_months"`
	Note              string    `json:"note,omitempty"`
}

// PredictionRow is one forecast month, for tabular rendering.
type PredictionRow struct {
	Month    string
	Expenses float64
	Income   float64
	Net      float64
}

// Rows zips the parallel forecast arrays. Missing values are zero.
func (p Predictions) Rows() []PredictionRow {
	rows := make([]PredictionRow, len(p.Months))
	for i, m := range p.Months {
		rows[i] = PredictionRow{Month: m, Expenses: at(p.PredictedExpenses, i), Income: at(p.PredictedIncome, i)}
		if i < len(p.PredictedNet) {
			rows[i].Net = p.PredictedNet[i]
		} else {
			rows[i].Net = rows[i].Income - rows[i].Expenses
		}
	}
	return rows
}

// MonthFigures is one month of the analysis payload.
type MonthFigures struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// Analysis is the spending analysis payload.
type Analysis struct {
	TotalExpenses      float64                 `json:"total_expenses"`
	TotalIncome        float64                 `json:"total_income"`
	NetBalance         float64                 `json:"net_balance"`
	ByCategory         map[string]float64      `json:"by_category"`
	ByMonth            map[string]MonthFigures `json:"by_month"`
	AvgMonthlyExpense  float64                 `json:"avg_monthly_expense"`
	TopCategories      [][2]any                `json:"top_categories"`
	TransactionCount   int                     `json:"transaction_count"`
	AnalysisPeriodDays int                     `json:"analysis_period_days"`
}

// CategoryScore is one candidate category with its confidence.
type CategoryScore struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Categorization is the answer to a categorize request.
type Categorization struct {
	SuggestedCategory string          `json:"suggested_category"`
	Confidence        float64         `json:"confidence"`
	AllCategories     []CategoryScore `json:"all_categories"`
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
