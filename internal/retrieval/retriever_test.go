package retrieval

import (
	"context"
	"errors"
	"testing"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	dim     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func (m *mockEmbedder) Dimension() int { return m.dim }

type mockVectorStore struct {
	searchFn func(vector []float32, f Filter, topK int) ([]ScoredChunk, error)
}

func (m *mockVectorStore) Insert([]Chunk) error { return nil }
func (m *mockVectorStore) Search(vector []float32, f Filter, topK int) ([]ScoredChunk, error) {
	return m.searchFn(vector, f, topK)
}
func (m *mockVectorStore) GetByIDs(context.Context, []string) ([]Chunk, error) { return nil, nil }
func (m *mockVectorStore) Count() (int, error)                                 { return 0, nil }
func (m *mockVectorStore) Stats() (CorpusStats, error)                         { return CorpusStats{}, nil }
func (m *mockVectorStore) ExportAll() ([]Chunk, error)                         { return nil, nil }

func okEmbedder() *mockEmbedder {
	return &mockEmbedder{
		embedFn: func(context.Context, string) ([]float32, error) {
			return []float32{0.1, 0.2, 0.3}, nil
		},
		dim: 3,
	}
}

func TestRetrieverSearch_RanksResults(t *testing.T) {
	store := &mockVectorStore{
		searchFn: func([]float32, Filter, int) ([]ScoredChunk, error) {
			return []ScoredChunk{
				{Chunk: Chunk{ID: "c1"}, Score: 0.9},
				{Chunk: Chunk{ID: "c2"}, Score: 0.7},
			}, nil
		},
	}

	r := NewRetriever(okEmbedder(), store, nil)
	results, err := r.Search(context.Background(), "quarterly revenue", Filter{}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("results[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
}

func TestRetrieverSearch_EmptyQuery(t *testing.T) {
	r := NewRetriever(okEmbedder(), &mockVectorStore{}, nil)
	if _, err := r.Search(context.Background(), "", Filter{}, 5); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestRetrieverSearch_LimitClamping(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero uses default", 0, DefaultLimit},
		{"negative uses default", -3, DefaultLimit},
		{"in range passes through", 20, 20},
		{"above max is capped", 500, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			store := &mockVectorStore{
				searchFn: func(_ []float32, _ Filter, topK int) ([]ScoredChunk, error) {
					gotLimit = topK
					return nil, nil
				},
			}
			r := NewRetriever(okEmbedder(), store, nil)
			if _, err := r.Search(context.Background(), "q", Filter{}, tt.limit); err != nil {
				t.Fatalf("Search: %v", err)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("store saw limit %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestRetrieverSearch_EmbedError(t *testing.T) {
	embedder := &mockEmbedder{
		embedFn: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("model offline")
		},
	}
	r := NewRetriever(embedder, &mockVectorStore{}, nil)

	_, err := r.Search(context.Background(), "q", Filter{}, 5)
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("err = %v, want ErrEmbedding", err)
	}
}

func TestRetrieverSearch_StoreError(t *testing.T) {
	store := &mockVectorStore{
		searchFn: func([]float32, Filter, int) ([]ScoredChunk, error) {
			return nil, errors.New("db locked")
		},
	}
	r := NewRetriever(okEmbedder(), store, nil)

	_, err := r.Search(context.Background(), "q", Filter{}, 5)
	if !errors.Is(err, ErrStoreConnection) {
		t.Errorf("err = %v, want ErrStoreConnection", err)
	}
}

func TestRetrieverSearch_DimensionMismatchPassthrough(t *testing.T) {
	store := &mockVectorStore{
		searchFn: func([]float32, Filter, int) ([]ScoredChunk, error) {
			return nil, ErrDimensionMismatch
		},
	}
	r := NewRetriever(okEmbedder(), store, nil)

	_, err := r.Search(context.Background(), "q", Filter{}, 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if errors.Is(err, ErrStoreConnection) {
		t.Error("dimension mismatch should not be reported as a store connection error")
	}
}

func TestRetrieverSearch_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := &mockEmbedder{
		embedFn: func(ctx context.Context, _ string) ([]float32, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	r := NewRetriever(embedder, &mockVectorStore{}, nil)

	_, err := r.Search(ctx, "q", Filter{}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
