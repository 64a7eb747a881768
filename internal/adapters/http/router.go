package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askidc/corpus-assistant/internal/core/domain"
	"github.com/askidc/corpus-assistant/internal/core/ports"
	"github.com/askidc/corpus-assistant/internal/observability/metrics"
)

const serviceName = "api"

type RateLimit struct {
	RPS   float64
	Burst int
}

type Router struct {
	ingestor  ports.CorpusIngestor
	retriever ports.Retriever
	docs      ports.DocumentReader
	queue     ports.MessageQueue
	metrics   *metrics.HTTPServerMetrics
	rateLimit RateLimit
}

func NewRouter(
	ingestor ports.CorpusIngestor,
	retriever ports.Retriever,
	docs ports.DocumentReader,
	queue ports.MessageQueue,
	m *metrics.HTTPServerMetrics,
	rateLimit RateLimit,
) *Router {
	return &Router{
		ingestor:  ingestor,
		retriever: retriever,
		docs:      docs,
		queue:     queue,
		metrics:   m,
		rateLimit: rateLimit,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/corpus/documents", rt.ingestDocuments)
	mux.HandleFunc("/v1/corpus/documents/", rt.getDocument)
	mux.HandleFunc("/v1/corpus/rebuild", rt.requestRebuild)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/chat", rt.chat)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.rateLimit, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Documents) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents are required"})
		return
	}

	report, err := rt.ingestor.IngestBatch(r.Context(), req.Documents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sourceID := strings.TrimPrefix(r.URL.Path, "/v1/corpus/documents/")
	if sourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}

	doc, err := rt.docs.GetBySourceID(r.Context(), sourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// requestRebuild enqueues a rebuild; the worker picks it up from NATS.
func (rt *Router) requestRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	batchID := uuid.NewString()
	if err := rt.queue.PublishRebuildRequested(r.Context(), batchID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	retrieved, err := rt.retriever.Retrieve(r.Context(), req.Query, req.SessionID, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRetrieval("retrieve", retrieved.Candidates, time.Since(start))
	writeJSON(w, http.StatusOK, retrieved)
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	result, err := rt.retriever.Chat(r.Context(), req.Query, req.SessionID, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	K         int    `json:"k"`
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return queryRequest{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return queryRequest{}, false
	}
	return req, true
}

func (rt *Router) recordRetrieval(endpoint string, candidates []domain.Candidate, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	top := 0.0
	if len(candidates) > 0 {
		top = candidates[0].FusedScore
	}
	rt.metrics.RecordRetrieval(serviceName, endpoint, len(candidates), top, duration)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
