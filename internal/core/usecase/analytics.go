package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const defaultCaseDurationDays = 120

// AnalyticsAgent sends aggregate figures, never document text, to the primary
// model and stores the resulting insight record.
type AnalyticsAgent struct {
	model     ports.ModelClient
	analyses  ports.AnalysisRepository
	deadlines ports.DeadlineRepository
	documents ports.DocumentRepository
	clients   ports.ClientRepository
	now       ports.Clock
}

func NewAnalyticsAgent(
	model ports.ModelClient,
	analyses ports.AnalysisRepository,
	deadlines ports.DeadlineRepository,
	documents ports.DocumentRepository,
	clients ports.ClientRepository,
	now ports.Clock,
) *AnalyticsAgent {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsAgent{
		model:     model,
		analyses:  analyses,
		deadlines: deadlines,
		documents: documents,
		clients:   clients,
		now:       now,
	}
}

type analysisResponse struct {
	KeyInsights modelStrings           `json:"key_insights"`
	ActionItems modelStrings           `json:"action_items"`
	Metrics     map[string]modelNumber `json:"metrics"`
	Summary     string                 `json:"summary"`
	RiskLevel   string                 `json:"risk_level"`
	Confidence  modelNumber            `json:"confidence"`
}

func (a *AnalyticsAgent) Analyze(
	ctx context.Context,
	firmID string,
	kind domain.AnalysisType,
	input map[string]any,
) (*domain.Analysis, error) {
	if _, ok := domain.ParseAnalysisType(string(kind)); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze", fmt.Errorf("unknown analysis type %q", kind))
	}
	if strings.TrimSpace(firmID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("firm id is required"))
	}

	analysis := &domain.Analysis{
		FirmID:    firmID,
		Type:      kind,
		InputData: input,
		Result:    a.run(ctx, kind, input),
		CreatedAt: a.now().UTC(),
	}
	if err := a.analyses.Insert(ctx, analysis); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}
	return analysis, nil
}

func (a *AnalyticsAgent) run(ctx context.Context, kind domain.AnalysisType, input map[string]any) domain.AnalysisResult {
	raw, err := a.model.GenerateJSON(ctx, buildAnalysisPrompt(kind, input))
	if err != nil {
		slog.Warn("analysis_fallback", "analysis_type", string(kind), "reason", "model_call", "error", err)
		return domain.FallbackAnalysisResult()
	}

	var resp analysisResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		slog.Warn("analysis_fallback", "analysis_type", string(kind), "reason", "malformed_output", "error", err)
		return domain.FallbackAnalysisResult()
	}

	metrics := make(map[string]float64, len(resp.Metrics))
	for name, value := range resp.Metrics {
		if value.Valid {
			metrics[name] = value.Value
		}
	}

	risk := domain.RiskUnknown
	switch level := domain.RiskLevel(strings.ToLower(strings.TrimSpace(resp.RiskLevel))); level {
	case domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical:
		risk = level
	}

	return domain.AnalysisResult{
		KeyInsights: resp.KeyInsights.List(),
		ActionItems: resp.ActionItems.List(),
		Metrics:     metrics,
		Summary:     strings.TrimSpace(resp.Summary),
		RiskLevel:   risk,
		Confidence:  resp.Confidence.Clamped(),
	}
}

func (a *AnalyticsAgent) AnalyzeDeadlineRisk(ctx context.Context, firmID string, clientID *int64) (*domain.Analysis, error) {
	stats, err := a.deadlines.Stats(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load deadline stats: %w", err)
	}

	today := domain.DateOf(a.now())
	weekAhead := today.AddDate(0, 0, 7)
	open := false
	upcoming, err := a.deadlines.List(ctx, domain.DeadlineFilter{
		ClientID:  clientID,
		Completed: &open,
		From:      &today,
		To:        &weekAhead,
	})
	if err != nil {
		return nil, fmt.Errorf("load upcoming deadlines: %w", err)
	}

	input := map[string]any{
		"upcoming_deadlines":    stats.Total,
		"overdue_tasks":         stats.Overdue,
		"deadlines_next_7_days": len(upcoming),
		"critical_deadlines":    stats.Critical,
		"high_deadlines":        stats.High,
		"medium_deadlines":      stats.Medium,
		"low_deadlines":         stats.Low,
		"completed_deadlines":   stats.Completed,
	}
	return a.Analyze(ctx, firmID, domain.AnalysisDeadlineRisk, input)
}

func (a *AnalyticsAgent) AnalyzeCaseloadHealth(ctx context.Context, firmID string) (*domain.Analysis, error) {
	figures, err := a.documents.CaseloadFigures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load caseload figures: %w", err)
	}
	activeClients, err := a.clients.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active clients: %w", err)
	}

	avgDuration := figures.AvgCaseAgeDays
	if avgDuration <= 0 {
		avgDuration = defaultCaseDurationDays
	}
	perClient := 0.0
	if activeClients > 0 {
		perClient = float64(figures.TotalCases) / float64(activeClients)
	}

	input := map[string]any{
		"total_cases":            figures.TotalCases,
		"active_clients":         activeClients,
		"clients_with_documents": figures.DistinctClients,
		"avg_case_duration_days": avgDuration,
		"cases_per_client":       perClient,
		"open_deadlines":         figures.OpenDeadlines,
		"documents_last_30_days": figures.DocumentsLast30Day,
	}
	return a.Analyze(ctx, firmID, domain.AnalysisCaseloadHealth, input)
}

func (a *AnalyticsAgent) AnalyzeProfitability(ctx context.Context, firmID string, figures map[string]float64) (*domain.Analysis, error) {
	if len(figures) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze profitability", errors.New("figures are required"))
	}
	input := make(map[string]any, len(figures))
	for k, v := range figures {
		input[k] = v
	}
	return a.Analyze(ctx, firmID, domain.AnalysisProfitabilityTrends, input)
}

func (a *AnalyticsAgent) Recent(ctx context.Context, firmID string, kind domain.AnalysisType, limit int) ([]domain.Analysis, error) {
	if limit <= 0 {
		limit = 10
	}
	items, err := a.analyses.ListRecent(ctx, firmID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return items, nil
}

func (a *AnalyticsAgent) Stats(ctx context.Context, firmID string) (domain.AnalysisStats, error) {
	stats, err := a.analyses.Stats(ctx, firmID)
	if err != nil {
		return domain.AnalysisStats{}, fmt.Errorf("analysis stats: %w", err)
	}
	return stats, nil
}
