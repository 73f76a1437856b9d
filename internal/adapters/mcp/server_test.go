package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type searchFake struct {
	ports.SemanticSearch
	cleared int
	filter  domain.SearchFilter
	limit   int
}

func (f *searchFake) Search(_ context.Context, _ string, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	f.limit = limit
	f.filter = filter
	return []domain.SearchHit{{DocumentID: "client_1_a.txt", Score: 0.9}}, nil
}

func (f *searchFake) Clear(context.Context) error {
	f.cleared++
	return nil
}

type deadlinesFake struct {
	ports.DeadlineService
	filters []domain.DeadlineFilter
}

func (f *deadlinesFake) List(_ context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error) {
	f.filters = append(f.filters, filter)
	return []domain.Deadline{}, nil
}

type analyticsFake struct {
	ports.AnalyticsService
	firms []string
	kinds []domain.AnalysisType
}

func (f *analyticsFake) Recent(_ context.Context, firmID string, kind domain.AnalysisType, _ int) ([]domain.Analysis, error) {
	f.firms = append(f.firms, firmID)
	f.kinds = append(f.kinds, kind)
	return []domain.Analysis{{ID: 1, FirmID: firmID, Type: domain.AnalysisDeadlineRisk}}, nil
}

func (f *analyticsFake) Stats(_ context.Context, firmID string) (domain.AnalysisStats, error) {
	return domain.AnalysisStats{Total: 1, ByType: map[string]int{"deadline_risk": 1}}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", res.Content[0])
		return ""
	}
}

func TestSearchDocumentsPassesClientScope(t *testing.T) {
	search := &searchFake{}
	tools := NewTools(Services{Search: search}, "default")

	res, err := wrap("search_documents", tools.searchDocuments)(context.Background(), callRequest("search_documents", map[string]any{
		"query":                "notice period",
		"num_results":          float64(3),
		"similarity_threshold": 0.5,
		"client_id":            float64(4),
	}))
	if err != nil {
		t.Fatalf("search_documents error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if search.limit != 3 || search.filter.MinScore != 0.5 || search.filter.ClientID == nil || *search.filter.ClientID != 4 {
		t.Fatalf("unexpected search call: limit=%d filter=%+v", search.limit, search.filter)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if body["count"] != float64(1) {
		t.Fatalf("unexpected result: %+v", body)
	}
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	tools := NewTools(Services{Search: &searchFake{}}, "default")

	res, err := wrap("search_documents", tools.searchDocuments)(context.Background(), callRequest("search_documents", map[string]any{}))
	if err != nil {
		t.Fatalf("search_documents error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestClearDatabaseRequiresConfirmation(t *testing.T) {
	search := &searchFake{}
	tools := NewTools(Services{Search: search}, "default")
	handler := wrap("clear_database", tools.clearDatabase)

	res, err := handler(context.Background(), callRequest("clear_database", map[string]any{"confirm": false}))
	if err != nil {
		t.Fatalf("clear_database error = %v", err)
	}
	if !res.IsError || search.cleared != 0 {
		t.Fatalf("expected refusal without confirmation, cleared=%d", search.cleared)
	}

	res, err = handler(context.Background(), callRequest("clear_database", map[string]any{"confirm": true}))
	if err != nil {
		t.Fatalf("clear_database error = %v", err)
	}
	if res.IsError || search.cleared != 1 {
		t.Fatalf("expected index cleared once, cleared=%d text=%s", search.cleared, resultText(t, res))
	}
}

func TestDeadlinesByRiskListsOpenDeadlines(t *testing.T) {
	deadlines := &deadlinesFake{}
	tools := NewTools(Services{Deadlines: deadlines}, "default")
	handler := wrap("get_deadlines_by_risk", tools.deadlinesByRisk)

	res, err := handler(context.Background(), callRequest("get_deadlines_by_risk", map[string]any{"risk_level": "Critical"}))
	if err != nil || res.IsError {
		t.Fatalf("get_deadlines_by_risk failed: err=%v", err)
	}
	if len(deadlines.filters) != 1 {
		t.Fatalf("expected one list call")
	}
	f := deadlines.filters[0]
	if f.RiskLevel != domain.RiskCritical || f.Completed == nil || *f.Completed || f.ClientID != nil {
		t.Fatalf("unexpected filter: %+v", f)
	}

	res, err = handler(context.Background(), callRequest("get_deadlines_by_risk", map[string]any{"risk_level": "someday"}))
	if err != nil {
		t.Fatalf("get_deadlines_by_risk error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "someday") {
		t.Fatalf("expected tool error naming the bad level")
	}
}

func TestStrategicInsightsUsesDefaultFirm(t *testing.T) {
	analytics := &analyticsFake{}
	tools := NewTools(Services{Analytics: analytics}, "firm-a")

	res, err := wrap("get_strategic_insights", tools.strategicInsights)(context.Background(), callRequest("get_strategic_insights", map[string]any{
		"analysis_type": "deadline_risk",
	}))
	if err != nil || res.IsError {
		t.Fatalf("get_strategic_insights failed: err=%v", err)
	}
	if len(analytics.firms) != 1 || analytics.firms[0] != "firm-a" || analytics.kinds[0] != domain.AnalysisDeadlineRisk {
		t.Fatalf("unexpected recent call: firms=%v kinds=%v", analytics.firms, analytics.kinds)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	if s := NewServer(NewTools(Services{}, "default"), "test"); s == nil {
		t.Fatalf("expected server")
	}
}
