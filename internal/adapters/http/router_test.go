package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

type pipelineFake struct {
	ports.DocumentPipeline
	uploads   []ports.UploadRequest
	bodies    []string
	result    *ports.PipelineResult
	err       error
	scheduled []string
}

func (f *pipelineFake) Process(_ context.Context, req ports.UploadRequest) (*ports.PipelineResult, error) {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, req)
	f.bodies = append(f.bodies, string(raw))
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *pipelineFake) ScheduleReprocess(_ context.Context, clientID *int64, documentID string) (ports.ReprocessRequest, error) {
	if f.err != nil {
		return ports.ReprocessRequest{}, f.err
	}
	f.scheduled = append(f.scheduled, documentID)
	return ports.ReprocessRequest{DocumentID: documentID, ClientID: clientID, RequestID: "req-1"}, nil
}

type clientsFake struct {
	ports.ClientService
	created    []domain.ClientInput
	activeOnly []bool
	err        error
}

func (f *clientsFake) Create(_ context.Context, in domain.ClientInput) (*domain.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &domain.Client{ID: 1, Name: in.Name, Email: in.Email, Active: true}, nil
}

func (f *clientsFake) Get(_ context.Context, id int64) (*domain.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Client{ID: id, Name: "Ana", Email: "ana@example.com", Active: true}, nil
}

func (f *clientsFake) List(_ context.Context, activeOnly bool) ([]domain.Client, error) {
	f.activeOnly = append(f.activeOnly, activeOnly)
	return []domain.Client{{ID: 1, Name: "Ana", Active: true}}, f.err
}

type deleterFake struct {
	ports.Deleter
	documentClient *int64
	documentID     string
}

func (f *deleterFake) DeleteClient(_ context.Context, clientID int64) (*domain.DeletionSummary, error) {
	return &domain.DeletionSummary{DocumentsDeleted: 2, DeadlinesDeleted: 3}, nil
}

func (f *deleterFake) DeleteDocument(_ context.Context, clientID *int64, documentID string) (*domain.DeletionSummary, error) {
	f.documentClient = clientID
	f.documentID = documentID
	return &domain.DeletionSummary{DocumentsDeleted: 1}, nil
}

type deadlinesFake struct {
	ports.DeadlineService
	filters   []domain.DeadlineFilter
	completed []bool
}

func (f *deadlinesFake) List(_ context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error) {
	f.filters = append(f.filters, filter)
	return []domain.Deadline{}, nil
}

func (f *deadlinesFake) SetCompleted(_ context.Context, id int64, completed bool) (*domain.Deadline, error) {
	f.completed = append(f.completed, completed)
	return &domain.Deadline{ID: id, Completed: completed, RiskLevel: domain.RiskHigh}, nil
}

func (f *deadlinesFake) RefreshRisk(context.Context) (int, error) { return 4, nil }

type searchFake struct {
	ports.SemanticSearch
	limit  int
	filter domain.SearchFilter
}

func (f *searchFake) Search(_ context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", io.EOF)
	}
	f.limit = limit
	f.filter = filter
	return []domain.SearchHit{{DocumentID: "client_1_a.txt", Score: 0.8}}, nil
}

type analyticsFake struct {
	ports.AnalyticsService
	firms []string
}

func (f *analyticsFake) AnalyzeCaseloadHealth(_ context.Context, firmID string) (*domain.Analysis, error) {
	f.firms = append(f.firms, firmID)
	return &domain.Analysis{ID: 9, FirmID: firmID, Type: domain.AnalysisCaseloadHealth}, nil
}

func newTestHandler(cfg config.Config, svc Services) http.Handler {
	return NewRouter(cfg, svc, nil).Handler()
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	res := serve(newTestHandler(config.Config{}, Services{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentRunsPipeline(t *testing.T) {
	pipeline := &pipelineFake{result: &ports.PipelineResult{Success: true, DocumentID: "client_7_lease.txt", ChunksCreated: 1}}
	handler := newTestHandler(config.Config{MaxUploadBytes: 1 << 20}, Services{Pipeline: pipeline})

	body, contentType := multipartUpload(t, "lease.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/clients/7/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := serve(handler, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(pipeline.uploads) != 1 {
		t.Fatalf("expected one pipeline call, got %d", len(pipeline.uploads))
	}
	upload := pipeline.uploads[0]
	if upload.ClientID == nil || *upload.ClientID != 7 || upload.Filename != "lease.txt" || pipeline.bodies[0] != "hello" {
		t.Fatalf("unexpected upload: %+v body=%q", upload, pipeline.bodies[0])
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["document_id"] != "client_7_lease.txt" || resp["success"] != true {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := newTestHandler(config.Config{}, Services{Pipeline: pipeline})

	req := httptest.NewRequest(http.MethodPost, "/api/clients/7/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := serve(handler, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(pipeline.uploads) != 0 {
		t.Fatalf("pipeline must not run")
	}
}

func TestUploadDocumentRejectsOversizedBody(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := newTestHandler(config.Config{MaxUploadBytes: 16}, Services{Pipeline: pipeline})

	body, contentType := multipartUpload(t, "big.txt", strings.Repeat("x", 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/clients/7/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := serve(handler, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(pipeline.uploads) != 0 {
		t.Fatalf("pipeline must not run")
	}
}

func TestUploadDocumentUnknownClientReturns404(t *testing.T) {
	pipeline := &pipelineFake{err: domain.WrapError(domain.ErrClientNotFound, "upload document", io.EOF)}
	handler := newTestHandler(config.Config{}, Services{Pipeline: pipeline})

	body, contentType := multipartUpload(t, "lease.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/clients/99/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := serve(handler, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestCreateClientReturns201(t *testing.T) {
	clients := &clientsFake{}
	handler := newTestHandler(config.Config{}, Services{Clients: clients})

	req := httptest.NewRequest(http.MethodPost, "/api/clients", strings.NewReader(`{"name":"Ana","email":"ana@example.com"}`))
	res := serve(handler, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if len(clients.created) != 1 || clients.created[0].Email != "ana@example.com" {
		t.Fatalf("unexpected create calls: %+v", clients.created)
	}
}

func TestCreateClientRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Clients: &clientsFake{}})

	res := serve(handler, httptest.NewRequest(http.MethodPost, "/api/clients", strings.NewReader(`{"name":`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListClientsDefaultsToActiveOnly(t *testing.T) {
	clients := &clientsFake{}
	handler := newTestHandler(config.Config{}, Services{Clients: clients})

	serve(handler, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	serve(handler, httptest.NewRequest(http.MethodGet, "/api/clients?active_only=false", nil))

	if len(clients.activeOnly) != 2 || !clients.activeOnly[0] || clients.activeOnly[1] {
		t.Fatalf("unexpected active_only values: %v", clients.activeOnly)
	}
}

func TestGetClientRejectsNonNumericID(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Clients: &clientsFake{}})

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/api/clients/abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDeleteClientPermanentReturnsSummary(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Deleter: &deleterFake{}})

	res := serve(handler, httptest.NewRequest(http.MethodDelete, "/api/clients/3/permanent", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var summary domain.DeletionSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.DocumentsDeleted != 2 || summary.DeadlinesDeleted != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestDeleteDocumentScopesToClient(t *testing.T) {
	deleter := &deleterFake{}
	handler := newTestHandler(config.Config{}, Services{Deleter: deleter})

	res := serve(handler, httptest.NewRequest(http.MethodDelete, "/api/clients/3/documents/client_3_lease.pdf", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if deleter.documentClient == nil || *deleter.documentClient != 3 || deleter.documentID != "client_3_lease.pdf" {
		t.Fatalf("unexpected delete call: client=%v id=%q", deleter.documentClient, deleter.documentID)
	}
}

func TestReprocessDocumentReturns202(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := newTestHandler(config.Config{}, Services{Pipeline: pipeline})

	res := serve(handler, httptest.NewRequest(http.MethodPost, "/api/clients/3/documents/client_3_lease.pdf/reprocess", nil))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(pipeline.scheduled) != 1 || pipeline.scheduled[0] != "client_3_lease.pdf" {
		t.Fatalf("unexpected scheduled: %v", pipeline.scheduled)
	}
}

func TestListDeadlinesParsesFilters(t *testing.T) {
	deadlines := &deadlinesFake{}
	handler := newTestHandler(config.Config{}, Services{Deadlines: deadlines})

	res := serve(handler, httptest.NewRequest(http.MethodGet,
		"/api/clients/5/deadlines?risk_level=high&completed=false&from=2026-10-01&to=2026-10-31", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(deadlines.filters) != 1 {
		t.Fatalf("expected one list call")
	}
	f := deadlines.filters[0]
	if f.ClientID == nil || *f.ClientID != 5 || f.RiskLevel != domain.RiskHigh {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.Completed == nil || *f.Completed {
		t.Fatalf("expected completed=false filter")
	}
	wantFrom := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	if f.From == nil || !f.From.Equal(wantFrom) || f.To == nil || f.To.Day() != 31 {
		t.Fatalf("unexpected date range: %v %v", f.From, f.To)
	}
}

func TestListDeadlinesRejectsBadFilters(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Deadlines: &deadlinesFake{}})

	for _, path := range []string{
		"/api/clients/5/deadlines?risk_level=urgent",
		"/api/clients/5/deadlines?completed=maybe",
		"/api/clients/5/deadlines?from=10/01/2026",
	} {
		res := serve(handler, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, res.Code)
		}
	}
}

func TestCompleteDeadlineToggle(t *testing.T) {
	deadlines := &deadlinesFake{}
	handler := newTestHandler(config.Config{}, Services{Deadlines: deadlines})

	res := serve(handler, httptest.NewRequest(http.MethodPatch, "/api/deadlines/4/complete", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	res = serve(handler, httptest.NewRequest(http.MethodPatch, "/api/deadlines/4/complete", strings.NewReader(`{"completed":false}`)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(deadlines.completed) != 2 || !deadlines.completed[0] || deadlines.completed[1] {
		t.Fatalf("unexpected completion calls: %v", deadlines.completed)
	}
}

func TestRefreshDeadlineRisk(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Deadlines: &deadlinesFake{}})

	res := serve(handler, httptest.NewRequest(http.MethodPost, "/api/deadlines/refresh", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]int
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["updated"] != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetValidationRejectsUnknownType(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	res := serve(handler, httptest.NewRequest(http.MethodGet, "/api/validations/invoice/12", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSemanticSearchPassesFilter(t *testing.T) {
	search := &searchFake{}
	handler := newTestHandler(config.Config{}, Services{Search: search})

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"lease termination","num_results":3,"similarity_threshold":0.4,"client_id":2}`))
	res := serve(handler, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if search.limit != 3 || search.filter.MinScore != 0.4 || search.filter.ClientID == nil || *search.filter.ClientID != 2 {
		t.Fatalf("unexpected search call: limit=%d filter=%+v", search.limit, search.filter)
	}
}

func TestRunAnalysisUsesDefaultFirm(t *testing.T) {
	analytics := &analyticsFake{}
	handler := newTestHandler(config.Config{DefaultFirmID: "firm-a"}, Services{Analytics: analytics})

	res := serve(handler, httptest.NewRequest(http.MethodPost, "/api/analytics/caseload_health", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(analytics.firms) != 1 || analytics.firms[0] != "firm-a" {
		t.Fatalf("unexpected firms: %v", analytics.firms)
	}

	res = serve(handler, httptest.NewRequest(http.MethodPost, "/api/analytics/weather", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown analysis type, got %d", res.Code)
	}
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	handler := NewRouter(config.Config{}, Services{}, metrics.NewHTTPServerMetrics("api")).Handler()

	serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res := serve(handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "legal_http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}
