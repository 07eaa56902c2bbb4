package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/observability/metrics"
)

type Router struct {
	submitter ports.JobSubmitter
	reader    ports.JobReader
	metrics   *metrics.HTTPServerMetrics
	service   string
}

func NewRouter(
	submitter ports.JobSubmitter,
	reader ports.JobReader,
	httpMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		submitter: submitter,
		reader:    reader,
		metrics:   httpMetrics,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/extractions", rt.submitExtraction)
	mux.HandleFunc("/v1/extractions/", rt.extractionSubtree)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	Documents []struct {
		Name          string `json:"name"`
		MediaType     string `json:"media_type"`
		SourceLocator string `json:"source_locator"`
	} `json:"documents"`
}

func (rt *Router) submitExtraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	docs := make([]domain.DocumentMeta, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = domain.DocumentMeta{
			Name:          d.Name,
			MediaType:     d.MediaType,
			SourceLocator: d.SourceLocator,
		}
	}

	job, err := rt.submitter.Submit(r.Context(), docs)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordJobSubmitted(rt.service, len(job.Documents))
	}
	writeJSON(w, http.StatusAccepted, job)
}

// extractionSubtree dispatches /v1/extractions/{id} and
// /v1/extractions/{id}/items.
func (rt *Router) extractionSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/extractions/")
	if id, ok := strings.CutSuffix(rest, "/items"); ok {
		rt.listItems(w, r, id)
		return
	}
	rt.getExtraction(w, r, rest)
}

func (rt *Router) getExtraction(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) listItems(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	items, err := rt.reader.ListItems(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.FinalMenuItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "items": items})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
