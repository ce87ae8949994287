package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vasanth/minuteman/internal/retrieval"
	"github.com/vasanth/minuteman/internal/scoring"
	"github.com/vasanth/minuteman/internal/session"
	"github.com/vasanth/minuteman/internal/synthesis"
	"github.com/vasanth/minuteman/internal/trace"
)

// Default result limits per mode, matching the interactive surface: raw mode
// shows a short list, generation modes retrieve a wider candidate set for
// the synthesizer to draw from.
const (
	defaultRawLimit      = 5
	defaultGenerateLimit = 10
)

// Response is the structured outcome of one query. Every response carries
// either a generated answer with confidence or a raw result list with an
// explicit degraded-mode flag, never a silent empty payload.
type Response struct {
	Query      string                     `json:"query"`
	Mode       Mode                       `json:"mode"`
	Answer     *synthesis.GeneratedAnswer `json:"answer,omitempty"`
	Results    []retrieval.SearchResult   `json:"results,omitempty"`
	Confidence float64                    `json:"confidence"`
	Degraded   bool                       `json:"degraded,omitempty"`
	Reason     string                     `json:"degraded_reason,omitempty"`
	Elapsed    time.Duration              `json:"elapsed_ns"`
}

// Retriever is the retrieval dependency of the pipeline.
type Retriever interface {
	Search(ctx context.Context, queryText string, f retrieval.Filter, limit int) ([]retrieval.SearchResult, error)
}

// Synthesizer is the generation dependency of the pipeline.
type Synthesizer interface {
	Generate(ctx context.Context, query string, results []retrieval.SearchResult) (synthesis.GeneratedAnswer, error)
}

// Pipeline runs the retrieval-and-generation flow for one query at a time.
// It is stateless between requests except for the session tracker's
// append-only history, and is safe for concurrent use.
type Pipeline struct {
	retriever   Retriever
	synthesizer Synthesizer
	sessions    *session.Tracker
	tracer      trace.Tracer
}

// New creates a Pipeline. synthesizer may be nil when no generation
// capability is configured; generate and detailed requests then degrade to
// raw output. tracer may be nil.
func New(retriever Retriever, synthesizer Synthesizer, sessions *session.Tracker, tracer trace.Tracer) *Pipeline {
	if sessions == nil {
		sessions = session.NewTracker()
	}
	if tracer == nil {
		tracer = trace.Nop{}
	}
	return &Pipeline{
		retriever:   retriever,
		synthesizer: synthesizer,
		sessions:    sessions,
		tracer:      tracer,
	}
}

// Sessions exposes the tracker for history queries.
func (p *Pipeline) Sessions() *session.Tracker {
	return p.sessions
}

// Ask answers one request. Retrieval-stage errors abort with an error;
// generation-stage errors degrade to raw retrieval output with the Degraded
// flag set. A completed turn is recorded under req.SessionID (when present)
// before returning; a request abandoned mid-flight records nothing.
func (p *Pipeline) Ask(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = ModeGenerate
	}

	limit := req.Limit
	if limit <= 0 {
		if mode == ModeRaw {
			limit = defaultRawLimit
		} else {
			limit = defaultGenerateLimit
		}
	}

	results, err := p.retriever.Search(ctx, req.Query, req.Filter, limit)
	if err != nil {
		return Response{}, fmt.Errorf("retrieval: %w", err)
	}

	resp := Response{Query: req.Query, Mode: mode, Confidence: scoring.Score(results, "")}

	switch mode {
	case ModeRaw:
		resp.Results = results

	case ModeGenerate, ModeDetailed:
		if mode == ModeDetailed {
			resp.Results = results
		}

		answer, genErr := p.generate(ctx, req.Query, results)
		if genErr != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			// Retrieval is the baseline guarantee; generation is best-effort.
			slog.Warn("pipeline: generation unavailable, falling back to raw results",
				"query", req.Query, "error", genErr)
			resp.Results = results
			resp.Degraded = true
			resp.Reason = "generation unavailable"
		} else {
			resp.Answer = &answer
			resp.Confidence = answer.Confidence
		}

	default:
		return Response{}, fmt.Errorf("unknown mode %q", mode)
	}

	resp.Elapsed = time.Since(start)

	if req.SessionID != "" {
		turn := session.Turn{
			Query:   req.Query,
			Mode:    string(mode),
			Filter:  req.Filter,
			Results: results,
			Answer:  resp.Answer,
		}
		if err := p.sessions.RecordTurn(req.SessionID, turn); err != nil {
			slog.Warn("pipeline: recording turn failed", "session", req.SessionID, "error", err)
		}
	}

	fields := map[string]any{
		"query":            req.Query,
		"mode":             string(mode),
		"chunks_retrieved": len(results),
		"confidence":       resp.Confidence,
		"degraded":         resp.Degraded,
		"total_ms":         resp.Elapsed.Milliseconds(),
	}
	if resp.Answer != nil {
		fields["answer_length"] = len(resp.Answer.Answer)
		fields["sources_used"] = len(resp.Answer.Sources)
	}
	p.tracer.Emit("rag_pipeline", fields)

	return resp, nil
}

func (p *Pipeline) generate(ctx context.Context, query string, results []retrieval.SearchResult) (synthesis.GeneratedAnswer, error) {
	if p.synthesizer == nil {
		return synthesis.GeneratedAnswer{}, fmt.Errorf("%w: no generation capability configured", synthesis.ErrGeneration)
	}
	return p.synthesizer.Generate(ctx, query, results)
}
