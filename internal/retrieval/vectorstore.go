package retrieval

import (
	"context"
	"fmt"
	"time"
)

// ChunkType enumerates the kinds of retrievable meeting fragments.
type ChunkType string

const (
	TypeMinute     ChunkType = "minute"
	TypeActionItem ChunkType = "action_item"
	TypeKeyInsight ChunkType = "key_insight"
)

// ParseChunkType validates a raw type string against the closed enumeration.
func ParseChunkType(s string) (ChunkType, error) {
	switch ChunkType(s) {
	case TypeMinute, TypeActionItem, TypeKeyInsight:
		return ChunkType(s), nil
	}
	return "", fmt.Errorf("unknown chunk type %q", s)
}

// Chunk is an immutable unit of retrievable meeting content. Chunks are
// produced by offline preprocessing and never mutated at query time.
type Chunk struct {
	ID        string            `json:"id"`
	MeetingID string            `json:"meeting_id"`
	Type      ChunkType         `json:"type"`
	Speaker   string            `json:"speaker,omitempty"` // optional; empty for key insights
	Role      string            `json:"role,omitempty"`    // optional; speaker's role in the meeting
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"` // never serialized to API surfaces
	Metadata  map[string]string `json:"metadata,omitempty"` // sentiment, timestamp, assigned_to, due_date, priority, ...
	CreatedAt time.Time         `json:"created_at"`
}

// ScoredChunk is a Chunk with a cosine similarity score attached.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Filter restricts a similarity search to chunks matching every set field
// (logical AND). Zero-value fields are ignored. Values referencing nothing
// in the corpus simply match no chunks.
type Filter struct {
	Type      ChunkType
	MeetingID string
	Speaker   string
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return f.Type == "" && f.MeetingID == "" && f.Speaker == ""
}

// SearchResult is a scored, ranked reference to a Chunk. Rank is 1-based;
// within one result list rank order is non-increasing in Score, with ties
// broken by ascending chunk ID so ordering is reproducible.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
	Rank  int     `json:"rank"`
}

// CorpusStats summarizes the stored chunk corpus.
type CorpusStats struct {
	TotalChunks int            `json:"total_chunks"`
	ByType      map[string]int `json:"by_type"`
	ByMeeting   map[string]int `json:"by_meeting"`
	Dimension   int            `json:"dimension"`
}

// VectorStore is the interface for chunk storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity; an ANN-capable backend can replace it behind this interface.
type VectorStore interface {
	// Insert adds chunks to the store. Used only by offline loading and
	// ingestion; the online pipeline never mutates the store.
	Insert(chunks []Chunk) error

	// Search returns the top-K chunks most similar to vector, restricted to
	// chunks satisfying the filter. Results are ordered by score descending,
	// ties broken by ascending chunk ID.
	Search(vector []float32, f Filter, topK int) ([]ScoredChunk, error)

	// GetByIDs returns chunks matching the given IDs.
	GetByIDs(ctx context.Context, ids []string) ([]Chunk, error)

	// Count returns the number of stored chunks.
	Count() (int, error)

	// Stats returns corpus-level statistics.
	Stats() (CorpusStats, error)

	// ExportAll returns all chunks, oldest first. Used for backend migration.
	ExportAll() ([]Chunk, error)
}
