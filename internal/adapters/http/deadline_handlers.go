package httpadapter

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func (rt *Router) listDeadlines(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := domain.DeadlineFilter{ClientID: &clientID}

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("risk_level")); raw != "" {
		level, ok := domain.ParseRiskLevel(raw)
		if !ok {
			badRequest(w, r, "list deadlines", "unknown risk_level "+raw)
			return
		}
		filter.RiskLevel = level
	}
	if filter.Completed, err = queryBool(r, "completed"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}

	deadlines, err := rt.svc.Deadlines.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deadlines": deadlines, "count": len(deadlines)})
}

func (rt *Router) deadlineStats(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := rt.svc.Deadlines.Stats(r.Context(), &clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) upcomingDeadlines(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deadlines, err := rt.svc.Deadlines.Upcoming(r.Context(), &clientID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deadlines": deadlines, "count": len(deadlines)})
}

func (rt *Router) completeDeadline(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Completed *bool `json:"completed"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	completed := body.Completed == nil || *body.Completed

	deadline, err := rt.svc.Deadlines.SetCompleted(r.Context(), id, completed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deadline)
}

func (rt *Router) extractDeadlines(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text     string `json:"text"`
		ClientID *int64 `json:"client_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		badRequest(w, r, "extract deadlines", "text is required")
		return
	}
	result, err := rt.svc.Extractor.ExtractManual(r.Context(), body.Text, body.ClientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) refreshDeadlineRisk(w http.ResponseWriter, r *http.Request) {
	updated, err := rt.svc.Deadlines.RefreshRisk(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (rt *Router) urgentDeadlines(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	clientID, err := queryInt64Ptr(r, "client_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := rt.svc.Deadlines.Urgent(r.Context(), clientID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deadlines": items, "count": len(items)})
}

func (rt *Router) getValidation(w http.ResponseWriter, r *http.Request) {
	validationType, ok := domain.ParseValidationType(r.PathValue("validation_type"))
	if !ok {
		badRequest(w, r, "get validation", "unknown validation type "+r.PathValue("validation_type"))
		return
	}
	validation, err := rt.svc.Validations.Latest(r.Context(), validationType, r.PathValue("entity_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	day, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse query", err)
	}
	return &day, nil
}
