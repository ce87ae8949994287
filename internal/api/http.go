package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasanth/minuteman/internal/pipeline"
	"github.com/vasanth/minuteman/internal/retrieval"
	"github.com/vasanth/minuteman/internal/session"
)

const maxQueryBodySize = 1 << 20 // 1MB

// Asker answers pipeline requests. Satisfied by *pipeline.Pipeline.
type Asker interface {
	Ask(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Pipeline Asker
	Sessions *session.Tracker
	Vectors  retrieval.VectorStore
}

// QueryRequest is the POST /query body. Filter fields are flattened for
// ergonomic JSON; the boundary translates them into the typed filter.
type QueryRequest struct {
	Query     string `json:"query"`
	Mode      string `json:"mode,omitempty"`
	Type      string `json:"type,omitempty"`
	Meeting   string `json:"meeting,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/query", handleQuery(deps))
	r.Get("/sessions", handleListSessions(deps))
	r.Get("/sessions/{id}", handleGetSession(deps))
	r.Get("/stats", handleStats(deps))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var q QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if q.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		req, err := toPipelineRequest(q)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		resp, err := deps.Pipeline.Ask(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrInvalidFilter):
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			case errors.Is(err, retrieval.ErrEmbedding),
				errors.Is(err, retrieval.ErrStoreConnection),
				errors.Is(err, retrieval.ErrDimensionMismatch):
				httpError(w, http.StatusBadGateway, "retrieval_error", "%v", err)
			case errors.Is(err, context.Canceled):
				// Client went away; nothing useful to write.
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func toPipelineRequest(q QueryRequest) (pipeline.Request, error) {
	req := pipeline.Request{
		Query:     q.Query,
		Mode:      pipeline.ModeGenerate,
		Limit:     q.Limit,
		SessionID: q.SessionID,
	}

	switch q.Mode {
	case "", string(pipeline.ModeGenerate):
	case string(pipeline.ModeRaw):
		req.Mode = pipeline.ModeRaw
	case string(pipeline.ModeDetailed):
		req.Mode = pipeline.ModeDetailed
	default:
		return pipeline.Request{}, fmt.Errorf("unknown mode %q", q.Mode)
	}

	if q.Type != "" {
		ct, err := retrieval.ParseChunkType(q.Type)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidFilter, err)
		}
		req.Filter.Type = ct
	}
	req.Filter.MeetingID = q.Meeting
	req.Filter.Speaker = q.Speaker

	return req, nil
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deps.Sessions.Sessions())
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		history := deps.Sessions.History(id)
		if history == nil {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(history)
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Vectors.Stats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get stats: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
