package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

func (rt *Router) listClients(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active_only")
	if err != nil {
		writeError(w, r, err)
		return
	}
	clients, err := rt.svc.Clients.List(r.Context(), activeOnly == nil || *activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients, "count": len(clients)})
}

func (rt *Router) createClient(w http.ResponseWriter, r *http.Request) {
	var in domain.ClientInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	client, err := rt.svc.Clients.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (rt *Router) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	client, err := rt.svc.Clients.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (rt *Router) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.ClientInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	client, err := rt.svc.Clients.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (rt *Router) deactivateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.svc.Clients.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client_id": id, "active": false})
}

func (rt *Router) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := rt.svc.Deleter.DeleteClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.maxUploadBytes > 0 {
		// Leave room for multipart framing; the pipeline enforces the exact limit.
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartMemorySize/32)
	}
	if err := r.ParseMultipartForm(multipartMemorySize); err != nil {
		rt.recordUpload("rejected")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, r, "upload document", "file exceeds maximum upload size")
			return
		}
		badRequest(w, r, "upload document", "multipart field 'file' is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		rt.recordUpload("rejected")
		badRequest(w, r, "upload document", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	result, err := rt.svc.Pipeline.Process(r.Context(), ports.UploadRequest{
		ClientID: &clientID,
		Filename: header.Filename,
		Metadata: map[string]any{
			"content_type": header.Header.Get("Content-Type"),
			"size":         header.Size,
		},
		Body: file,
	})
	if err != nil {
		rt.recordUpload("rejected")
		writeError(w, r, err)
		return
	}
	if len(result.StageErrors) > 0 {
		rt.recordUpload("degraded")
	} else {
		rt.recordUpload("processed")
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := domain.DocumentFilter{
		ClientID: &clientID,
		Query:    strings.TrimSpace(q.Get("q")),
		MatterID: strings.TrimSpace(q.Get("matter_id")),
		Limit:    limit,
	}
	if raw := strings.TrimSpace(q.Get("doc_type")); raw != "" {
		docType, ok := domain.ParseDocType(raw)
		if !ok {
			badRequest(w, r, "list documents", "unknown doc_type "+raw)
			return
		}
		filter.DocType = docType
	}

	docs, err := rt.svc.Documents.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (rt *Router) documentStats(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := rt.svc.Documents.Stats(r.Context(), &clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := rt.svc.Deleter.DeleteDocument(r.Context(), &clientID, r.PathValue("document_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := rt.svc.Pipeline.ScheduleReprocess(r.Context(), &clientID, r.PathValue("document_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "queued",
		"document_id": req.DocumentID,
		"request_id":  req.RequestID,
	})
}
