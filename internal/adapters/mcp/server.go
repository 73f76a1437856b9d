// Package mcpadapter exposes the intake services as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const serverName = "legal-intake"

type Services struct {
	Search    ports.SemanticSearch
	Extractor ports.DeadlineExtractor
	Deadlines ports.DeadlineService
	Documents ports.DocumentService
	Analytics ports.AnalyticsService
}

type Tools struct {
	svc           Services
	defaultFirmID string
}

func NewTools(svc Services, defaultFirmID string) *Tools {
	return &Tools{svc: svc, defaultFirmID: defaultFirmID}
}

type toolHandler func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// NewServer registers every tool on a new MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Semantic search over indexed document chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query")),
		mcp.WithNumber("num_results", mcp.Description("Maximum hits, default 5, capped at 20")),
		mcp.WithNumber("similarity_threshold", mcp.Description("Minimum score, default 0.1")),
		mcp.WithNumber("client_id", mcp.Description("Restrict hits to one client")),
	), wrap("search_documents", tools.searchDocuments))

	s.AddTool(mcp.NewTool("index_document",
		mcp.WithDescription("Chunk, embed and index free text under a document id."),
		mcp.WithString("document_id", mcp.Required()),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("client_id"),
	), wrap("index_document", tools.indexDocument))

	s.AddTool(mcp.NewTool("get_database_stats",
		mcp.WithDescription("Vector index statistics."),
	), wrap("get_database_stats", tools.databaseStats))

	s.AddTool(mcp.NewTool("clear_database",
		mcp.WithDescription("Drop every indexed chunk. Requires confirm=true."),
		mcp.WithBoolean("confirm", mcp.Required()),
	), wrap("clear_database", tools.clearDatabase))

	s.AddTool(mcp.NewTool("extract_deadlines",
		mcp.WithDescription("Extract and store deadlines from free text."),
		mcp.WithString("text", mcp.Required()),
		mcp.WithNumber("client_id"),
	), wrap("extract_deadlines", tools.extractDeadlines))

	s.AddTool(mcp.NewTool("get_deadlines_by_risk",
		mcp.WithDescription("Open deadlines in one risk tier."),
		mcp.WithString("risk_level", mcp.Required(), mcp.Enum("overdue", "critical", "high", "medium", "low")),
		mcp.WithNumber("client_id"),
	), wrap("get_deadlines_by_risk", tools.deadlinesByRisk))

	s.AddTool(mcp.NewTool("get_upcoming_deadlines",
		mcp.WithDescription("Open deadlines due within the next days."),
		mcp.WithNumber("days", mcp.Description("Window in calendar days, default 7")),
		mcp.WithNumber("client_id"),
	), wrap("get_upcoming_deadlines", tools.upcomingDeadlines))

	s.AddTool(mcp.NewTool("search_documents_by_type",
		mcp.WithDescription("Classified documents of one type, newest first."),
		mcp.WithString("doc_type", mcp.Required()),
		mcp.WithNumber("client_id"),
		mcp.WithNumber("limit"),
	), wrap("search_documents_by_type", tools.documentsByType))

	s.AddTool(mcp.NewTool("get_document_stats",
		mcp.WithDescription("Document counts per type."),
		mcp.WithNumber("client_id"),
	), wrap("get_document_stats", tools.documentStats))

	s.AddTool(mcp.NewTool("analyze_deadline_risk",
		mcp.WithDescription("Run the deadline risk analysis."),
		mcp.WithString("firm_id"),
		mcp.WithNumber("client_id"),
	), wrap("analyze_deadline_risk", tools.analyzeDeadlineRisk))

	s.AddTool(mcp.NewTool("analyze_caseload_health",
		mcp.WithDescription("Run the caseload health analysis."),
		mcp.WithString("firm_id"),
	), wrap("analyze_caseload_health", tools.analyzeCaseloadHealth))

	s.AddTool(mcp.NewTool("get_strategic_insights",
		mcp.WithDescription("Recent analyses and their statistics."),
		mcp.WithString("firm_id"),
		mcp.WithString("analysis_type", mcp.Enum("deadline_risk", "caseload_health", "profitability_trends")),
		mcp.WithNumber("limit"),
	), wrap("get_strategic_insights", tools.strategicInsights))

	return s
}

// wrap renders a handler result as JSON text. Failures become tool errors so
// the calling model sees them.
func wrap(name string, h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := h(ctx, req)
		if err != nil {
			slog.Warn("mcp_tool_failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal %s result: %w", name, err)
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func (t *Tools) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return nil, invalid("search documents", err)
	}
	hits, err := t.svc.Search.Search(ctx, query, req.GetInt("num_results", 0), domain.SearchFilter{
		ClientID: optionalClientID(req),
		MinScore: req.GetFloat("similarity_threshold", 0),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"query": query, "results": hits, "count": len(hits)}, nil
}

func (t *Tools) indexDocument(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return nil, invalid("index document", err)
	}
	text, err := req.RequireString("text")
	if err != nil {
		return nil, invalid("index document", err)
	}
	chunks, err := t.svc.Search.IndexText(ctx, documentID, text, optionalClientID(req))
	if err != nil {
		return nil, err
	}
	return map[string]any{"document_id": documentID, "chunks_indexed": chunks}, nil
}

func (t *Tools) databaseStats(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	return t.svc.Search.Stats(ctx)
}

func (t *Tools) clearDatabase(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if !req.GetBool("confirm", false) {
		return nil, invalid("clear database", errors.New("set confirm=true to drop the index"))
	}
	if err := t.svc.Search.Clear(ctx); err != nil {
		return nil, err
	}
	slog.Warn("vector_index_cleared", "source", "mcp")
	return map[string]any{"cleared": true}, nil
}

func (t *Tools) extractDeadlines(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return nil, invalid("extract deadlines", err)
	}
	return t.svc.Extractor.ExtractManual(ctx, text, optionalClientID(req))
}

func (t *Tools) deadlinesByRisk(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	raw, err := req.RequireString("risk_level")
	if err != nil {
		return nil, invalid("deadlines by risk", err)
	}
	level, ok := domain.ParseRiskLevel(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return nil, invalid("deadlines by risk", fmt.Errorf("unknown risk level %q", raw))
	}
	open := false
	items, err := t.svc.Deadlines.List(ctx, domain.DeadlineFilter{
		ClientID:  optionalClientID(req),
		RiskLevel: level,
		Completed: &open,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"risk_level": level, "deadlines": items, "count": len(items)}, nil
}

func (t *Tools) upcomingDeadlines(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	items, err := t.svc.Deadlines.Upcoming(ctx, optionalClientID(req), req.GetInt("days", 0))
	if err != nil {
		return nil, err
	}
	return map[string]any{"deadlines": items, "count": len(items)}, nil
}

func (t *Tools) documentsByType(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	raw, err := req.RequireString("doc_type")
	if err != nil {
		return nil, invalid("documents by type", err)
	}
	docType, ok := domain.ParseDocType(raw)
	if !ok {
		return nil, invalid("documents by type", fmt.Errorf("unknown doc type %q", raw))
	}
	docs, err := t.svc.Documents.Search(ctx, domain.DocumentFilter{
		ClientID: optionalClientID(req),
		DocType:  docType,
		Limit:    req.GetInt("limit", 0),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"doc_type": docType, "documents": docs, "count": len(docs)}, nil
}

func (t *Tools) documentStats(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return t.svc.Documents.Stats(ctx, optionalClientID(req))
}

func (t *Tools) analyzeDeadlineRisk(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return t.svc.Analytics.AnalyzeDeadlineRisk(ctx, t.firmID(req), optionalClientID(req))
}

func (t *Tools) analyzeCaseloadHealth(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return t.svc.Analytics.AnalyzeCaseloadHealth(ctx, t.firmID(req))
}

func (t *Tools) strategicInsights(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var kind domain.AnalysisType
	if raw := strings.TrimSpace(req.GetString("analysis_type", "")); raw != "" {
		parsed, ok := domain.ParseAnalysisType(raw)
		if !ok {
			return nil, invalid("strategic insights", fmt.Errorf("unknown analysis type %q", raw))
		}
		kind = parsed
	}
	firmID := t.firmID(req)
	recent, err := t.svc.Analytics.Recent(ctx, firmID, kind, req.GetInt("limit", 0))
	if err != nil {
		return nil, err
	}
	stats, err := t.svc.Analytics.Stats(ctx, firmID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"firm_id": firmID, "recent": recent, "stats": stats}, nil
}

func (t *Tools) firmID(req mcp.CallToolRequest) string {
	if firm := strings.TrimSpace(req.GetString("firm_id", "")); firm != "" {
		return firm
	}
	return t.defaultFirmID
}

func optionalClientID(req mcp.CallToolRequest) *int64 {
	id := int64(req.GetInt("client_id", 0))
	if id <= 0 {
		return nil
	}
	return &id
}

func invalid(operation string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, operation, err)
}
