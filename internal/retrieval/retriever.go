package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vasanth/minuteman/internal/llm"
	"github.com/vasanth/minuteman/internal/trace"
)

const (
	// DefaultLimit is the result limit used when the caller passes <= 0.
	DefaultLimit = 5

	// MaxLimit caps the number of results a single search may return.
	MaxLimit = 50
)

// Retriever combines query embedding and filtered vector search to find
// relevant meeting chunks. It is read-only with respect to the store and
// safe for concurrent use.
type Retriever struct {
	embedder llm.Embedder
	store    VectorStore
	tracer   trace.Tracer
}

// NewRetriever creates a Retriever. tracer may be nil, in which case
// events are discarded.
func NewRetriever(embedder llm.Embedder, store VectorStore, tracer trace.Tracer) *Retriever {
	if tracer == nil {
		tracer = trace.Nop{}
	}
	return &Retriever{embedder: embedder, store: store, tracer: tracer}
}

// Search embeds queryText and returns the top-limit chunks satisfying the
// filter, ordered by similarity descending with 1-based ranks. An empty
// result set is not an error. Filter values referencing nothing in the
// corpus match no chunks.
func (r *Retriever) Search(ctx context.Context, queryText string, f Filter, limit int) ([]SearchResult, error) {
	if queryText == "" {
		return nil, fmt.Errorf("query text must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := time.Now()

	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	scored, err := r.store.Search(vec, f, limit)
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}

	results := make([]SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = SearchResult{Chunk: sc.Chunk, Score: sc.Score, Rank: i + 1}
	}

	fields := map[string]any{
		"query":         queryText,
		"limit":         limit,
		"results_count": len(results),
		"search_ms":     time.Since(start).Milliseconds(),
	}
	if f.Type != "" {
		fields["filter_type"] = string(f.Type)
	}
	if f.MeetingID != "" {
		fields["filter_meeting"] = f.MeetingID
	}
	if f.Speaker != "" {
		fields["filter_speaker"] = f.Speaker
	}
	if len(results) > 0 {
		fields["top_score"] = results[0].Score
	}
	r.tracer.Emit("semantic_search", fields)

	return results, nil
}
