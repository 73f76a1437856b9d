package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

const (
	serviceName         = "api"
	maxJSONBodyBytes    = 1 << 20
	multipartMemorySize = 32 << 20
)

// Services groups the inbound ports the router dispatches to.
type Services struct {
	Pipeline    ports.DocumentPipeline
	Clients     ports.ClientService
	Deleter     ports.Deleter
	Documents   ports.DocumentService
	Deadlines   ports.DeadlineService
	Extractor   ports.DeadlineExtractor
	Validations ports.ValidationLookup
	Search      ports.SemanticSearch
	Analytics   ports.AnalyticsService
}

type Router struct {
	svc     Services
	metrics *metrics.HTTPServerMetrics

	defaultFirmID    string
	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
}

// NewRouter builds the API router. httpMetrics may be nil.
func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		svc:              svc,
		metrics:          httpMetrics,
		defaultFirmID:    cfg.DefaultFirmID,
		maxUploadBytes:   cfg.MaxUploadBytes,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: cfg.APIBackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/clients", rt.listClients)
	api.HandleFunc("POST /api/clients", rt.createClient)
	api.HandleFunc("GET /api/clients/{id}", rt.getClient)
	api.HandleFunc("PUT /api/clients/{id}", rt.updateClient)
	api.HandleFunc("DELETE /api/clients/{id}", rt.deactivateClient)
	api.HandleFunc("DELETE /api/clients/{id}/permanent", rt.deleteClient)

	api.HandleFunc("POST /api/clients/{id}/documents", rt.uploadDocument)
	api.HandleFunc("GET /api/clients/{id}/documents", rt.listDocuments)
	api.HandleFunc("GET /api/clients/{id}/documents/stats", rt.documentStats)
	api.HandleFunc("DELETE /api/clients/{id}/documents/{document_id}", rt.deleteDocument)
	api.HandleFunc("POST /api/clients/{id}/documents/{document_id}/reprocess", rt.reprocessDocument)

	api.HandleFunc("GET /api/clients/{id}/deadlines", rt.listDeadlines)
	api.HandleFunc("GET /api/clients/{id}/deadlines/stats", rt.deadlineStats)
	api.HandleFunc("GET /api/clients/{id}/deadlines/upcoming", rt.upcomingDeadlines)
	api.HandleFunc("PATCH /api/deadlines/{id}/complete", rt.completeDeadline)
	api.HandleFunc("POST /api/deadlines/extract", rt.extractDeadlines)
	api.HandleFunc("POST /api/deadlines/refresh", rt.refreshDeadlineRisk)
	api.HandleFunc("GET /api/urgent-deadlines", rt.urgentDeadlines)
	api.HandleFunc("GET /api/validations/{validation_type}/{entity_id}", rt.getValidation)

	api.HandleFunc("POST /api/search", rt.semanticSearch)
	api.HandleFunc("POST /api/analytics/{analysis_type}", rt.runAnalysis)
	api.HandleFunc("GET /api/analytics", rt.listAnalyses)
	api.HandleFunc("GET /api/analytics/stats", rt.analysisStats)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(apiHandler, rt.maxInFlight, rt.backpressureWait)
	apiHandler = rateLimitMiddleware(apiHandler, rt.rateLimitRPS, rt.rateLimitBurst)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	root.Handle("/api/", apiHandler)

	var handler http.Handler = root
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, r *http.Request, operation, message string) {
	writeError(w, r, domain.WrapError(domain.ErrInvalidInput, operation, errors.New(message)))
}

func decodeJSON(r *http.Request, out any) error {
	body := io.LimitReader(r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("request body is required"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode body", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse path", fmt.Errorf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be an integer", name))
	}
	return v, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be a boolean", name))
	}
	return &v, nil
}

func queryInt64Ptr(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be an integer", name))
	}
	return &v, nil
}
