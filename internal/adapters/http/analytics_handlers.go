package httpadapter

import (
	"net/http"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func (rt *Router) semanticSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query               string  `json:"query"`
		NumResults          int     `json:"num_results"`
		SimilarityThreshold float64 `json:"similarity_threshold"`
		ClientID            *int64  `json:"client_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	hits, err := rt.svc.Search.Search(r.Context(), body.Query, body.NumResults, domain.SearchFilter{
		ClientID: body.ClientID,
		MinScore: body.SimilarityThreshold,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": body.Query, "results": hits, "count": len(hits)})
}

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseAnalysisType(r.PathValue("analysis_type"))
	if !ok {
		badRequest(w, r, "run analysis", "unknown analysis type "+r.PathValue("analysis_type"))
		return
	}
	var body struct {
		FirmID   string             `json:"firm_id"`
		ClientID *int64             `json:"client_id"`
		Figures  map[string]float64 `json:"figures"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	firmID := rt.firmID(body.FirmID)

	var (
		analysis *domain.Analysis
		err      error
	)
	switch kind {
	case domain.AnalysisDeadlineRisk:
		analysis, err = rt.svc.Analytics.AnalyzeDeadlineRisk(r.Context(), firmID, body.ClientID)
	case domain.AnalysisCaseloadHealth:
		analysis, err = rt.svc.Analytics.AnalyzeCaseloadHealth(r.Context(), firmID)
	case domain.AnalysisProfitabilityTrends:
		analysis, err = rt.svc.Analytics.AnalyzeProfitability(r.Context(), firmID, body.Figures)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var kind domain.AnalysisType
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		parsed, ok := domain.ParseAnalysisType(raw)
		if !ok {
			badRequest(w, r, "list analyses", "unknown analysis type "+raw)
			return
		}
		kind = parsed
	}
	items, err := rt.svc.Analytics.Recent(r.Context(), rt.firmID(r.URL.Query().Get("firm_id")), kind, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": items, "count": len(items)})
}

func (rt *Router) analysisStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Analytics.Stats(r.Context(), rt.firmID(r.URL.Query().Get("firm_id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) firmID(requested string) string {
	if firm := strings.TrimSpace(requested); firm != "" {
		return firm
	}
	return rt.defaultFirmID
}
