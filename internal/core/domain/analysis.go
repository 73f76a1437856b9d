package domain

import "time"

type AnalysisType string

const (
	AnalysisDeadlineRisk        AnalysisType = "deadline_risk"
	AnalysisCaseloadHealth      AnalysisType = "caseload_health"
	AnalysisProfitabilityTrends AnalysisType = "profitability_trends"
)

func ParseAnalysisType(value string) (AnalysisType, bool) {
	switch AnalysisType(value) {
	case AnalysisDeadlineRisk, AnalysisCaseloadHealth, AnalysisProfitabilityTrends:
		return AnalysisType(value), true
	default:
		return "", false
	}
}

type AnalysisResult struct {
	KeyInsights []string           `json:"key_insights"`
	ActionItems []string           `json:"action_items"`
	Metrics     map[string]float64 `json:"metrics"`
	Summary     string             `json:"summary"`
	RiskLevel   RiskLevel          `json:"risk_level"`
	Confidence  float64            `json:"confidence"`
}

func FallbackAnalysisResult() AnalysisResult {
	return AnalysisResult{
		KeyInsights: []string{"Analysis could not be completed"},
		ActionItems: []string{},
		Metrics:     map[string]float64{},
		Summary:     "Error processing analysis",
		RiskLevel:   RiskUnknown,
		Confidence:  0,
	}
}

type Analysis struct {
	ID        int64          `json:"analysis_id"`
	FirmID    string         `json:"firm_id"`
	Type      AnalysisType   `json:"analysis_type"`
	InputData map[string]any `json:"input_data"`
	Result    AnalysisResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

type AnalysisStats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
	ByRisk map[string]int `json:"by_risk"`
}
