// Package httpadapter exposes the question-answering and ingestion usecases
// over HTTP. Every route except /health and /metrics sits behind basic auth.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime/types"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/metrics"
)

type Router struct {
	questions ports.QuestionService
	ingester  ports.IngestRequester
	queryLog  ports.QueryLogStore
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger

	authUsername string
	authPassword string
}

func NewRouter(
	questions ports.QuestionService,
	ingester ports.IngestRequester,
	queryLog ports.QueryLogStore,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	authUsername, authPassword string,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		questions:    questions,
		ingester:     ingester,
		queryLog:     queryLog,
		metrics:      m,
		logger:       logger,
		authUsername: authUsername,
		authPassword: authPassword,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/ask", rt.ask)
	mux.HandleFunc("/ask/stream", rt.askStream)
	mux.HandleFunc("/feedback", rt.feedback)
	mux.HandleFunc("/ingest", rt.ingest)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = basicAuthMiddleware(rt.authUsername, rt.authPassword, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.queryLog != nil {
		if stats, err := rt.queryLog.Stats(r.Context()); err == nil {
			body["queries"] = stats
		} else {
			rt.logger.Warn("health_stats_failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type askRequest struct {
	Question string                    `json:"question"`
	History  []domain.ConversationTurn `json:"history,omitempty"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	answer, err := rt.questions.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) askStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	events := rt.questions.AskStream(r.Context(), req.Question, req.History)
	if err := streamSSE(w, events); err != nil {
		// Headers are already out; all we can do is log and drop the conn.
		rt.logger.Error("sse_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var req askRequest
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return req, false
	}
	return req, true
}

type feedbackRequest struct {
	QueryID  string          `json:"query_id"`
	Feedback domain.Feedback `json:"feedback"`
	Note     string          `json:"note,omitempty"`
}

func (rt *Router) feedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.QueryID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_id is required"})
		return
	}
	if !domain.ValidFeedback(req.Feedback) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feedback must be positive or negative"})
		return
	}

	if err := rt.queryLog.UpdateFeedback(r.Context(), req.QueryID, req.Feedback, req.Note); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Query not found"})
			return
		}
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	URL        string            `json:"url"`
	SourceType domain.SourceType `json:"source_type,omitempty"`
	Title      string            `json:"title,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	IssueDate  *types.Date       `json:"issue_date,omitempty"`
	Force      bool              `json:"force,omitempty"`
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	job := domain.IngestJob{
		URL:        req.URL,
		SourceType: req.SourceType,
		Title:      req.Title,
		Identifier: req.Identifier,
		Force:      req.Force,
	}
	if req.IssueDate != nil {
		issued := req.IssueDate.Time
		job.IssueDate = &issued
	}

	jobID, err := rt.ingester.RequestIngest(r.Context(), job)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
