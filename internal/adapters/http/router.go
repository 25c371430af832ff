package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/clipindex/internal/core/domain"
	"github.com/kirillkom/clipindex/internal/core/ports"
	"github.com/kirillkom/clipindex/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	capturer ports.EntryCapturer
	searcher ports.SearchService
	answerer ports.AnswerService
	limiter  *callerLimiter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	capturer ports.EntryCapturer,
	searcher ports.SearchService,
	answerer ports.AnswerService,
	requestsPerHour int,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		capturer: capturer,
		searcher: searcher,
		answerer: answerer,
		limiter:  newCallerLimiter(requestsPerHour),
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", rt.health)

	mux.HandleFunc("POST /api/upload", rt.uploadDocuments)
	mux.HandleFunc("POST /api/search", rt.askAnswer)
	mux.HandleFunc("GET /api/stats", rt.stats)
	mux.HandleFunc("POST /api/cleanup", rt.cleanup)

	mux.HandleFunc("POST /v1/entries", rt.captureEntry)
	mux.HandleFunc("DELETE /v1/entries", rt.clearEntries)
	mux.HandleFunc("POST /v1/search", rt.search)

	var handler http.Handler = rt.limiter.middleware(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Documents []domain.UploadDocument `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Documents == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents must be a non-empty array"})
		return
	}

	files, err := rt.answerer.UploadDocuments(r.Context(), req.Documents)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := rt.capturer.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"uploadedFiles": files,
		"totalFiles":    len(files),
		"stats":         stats,
	})
}

func (rt *Router) askAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), req.Query)
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := rt.capturer.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":         answer.Answer,
		"cleanedContent": answer.CleanedContent,
		"model":          answer.Model,
		"stats":          stats,
	})
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.capturer.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) cleanup(w http.ResponseWriter, r *http.Request) {
	if err := rt.answerer.Cleanup(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (rt *Router) captureEntry(w http.ResponseWriter, r *http.Request) {
	var req domain.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	entry, err := rt.capturer.Capture(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (rt *Router) clearEntries(w http.ResponseWriter, r *http.Request) {
	if err := rt.capturer.ClearAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = requestIDFromContext(r.Context())
	}

	start := time.Now()
	results, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, string(req.Mode), len(results), time.Since(start))
	}
	payload := make([]any, len(results))
	for i, result := range results {
		payload[i] = resultPayload(result)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": payload,
		"total":   len(results),
	})
}

// resultPayload flattens the result union into a tagged JSON object.
func resultPayload(result domain.SearchResult) map[string]any {
	out := map[string]any{"type": string(result.Kind())}
	switch r := result.(type) {
	case domain.KeywordMatch:
		out["entry"] = r.Entry
		out["match_count"] = r.MatchCount
		out["relevance"] = r.Relevance
	case domain.SemanticMatch:
		out["entry"] = r.Entry
		out["similarity"] = r.Similarity
	case domain.CohesiveAnswer:
		out["answer"] = r.Answer
		out["cleaned_content"] = r.CleanedContent
		out["model"] = r.Model
		out["files"] = r.Files
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	payload := map[string]string{"error": userFacingMessage(err)}
	if status == http.StatusInternalServerError {
		payload["details"] = err.Error()
	}
	writeJSON(w, status, payload)
}

// userFacingMessage keeps 5xx bodies short and retryable-sounding; the full
// chain goes into details and the access log.
func userFacingMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNoDocuments):
		return domain.ErrNoDocuments.Error()
	case domain.IsKind(err, domain.ErrRunFailed):
		return "answer generation failed"
	case mapErrorToHTTPStatus(err) == http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
