package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vasanth/minuteman/internal/retrieval"
)

type mockStore struct {
	inserted []retrieval.Chunk
	insertFn func(chunks []retrieval.Chunk) error
}

func (m *mockStore) Insert(chunks []retrieval.Chunk) error {
	if m.insertFn != nil {
		return m.insertFn(chunks)
	}
	m.inserted = append(m.inserted, chunks...)
	return nil
}
func (m *mockStore) Search([]float32, retrieval.Filter, int) ([]retrieval.ScoredChunk, error) {
	return nil, nil
}
func (m *mockStore) GetByIDs(context.Context, []string) ([]retrieval.Chunk, error) {
	return nil, nil
}
func (m *mockStore) Count() (int, error)                  { return len(m.inserted), nil }
func (m *mockStore) Stats() (retrieval.CorpusStats, error) { return retrieval.CorpusStats{}, nil }
func (m *mockStore) ExportAll() ([]retrieval.Chunk, error) { return m.inserted, nil }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

const minuteJSON = `[
	{
		"chunk_id": "MTG_001_minute_001",
		"embedding": [0.1, 0.2, 0.3],
		"metadata": {
			"meeting_id": "MTG_001",
			"type": "minute",
			"speaker": "Sarah Chen",
			"role": "CTO",
			"text": "We should prioritize the database migration.",
			"sentiment": "positive"
		}
	}
]`

const actionItemJSON = `[
	{
		"chunk_id": "MTG_001_action_001",
		"embedding": [0.4, 0.5, 0.6],
		"metadata": {
			"meeting_id": "MTG_001",
			"type": "action_item",
			"task": "Draft the migration plan",
			"assigned_to": "Lisa Park",
			"due_date": "2026-04-01",
			"priority": "high"
		}
	}
]`

func TestLoadEmbeddings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "minutes.json", minuteJSON)
	writeFile(t, dir, "actions.json", actionItemJSON)

	store := &mockStore{}
	n, err := LoadEmbeddings(dir, store, 3)
	if err != nil {
		t.Fatalf("LoadEmbeddings: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d chunks, want 2", n)
	}

	byID := make(map[string]retrieval.Chunk)
	for _, c := range store.inserted {
		byID[c.ID] = c
	}

	m := byID["MTG_001_minute_001"]
	if m.Type != retrieval.TypeMinute || m.Speaker != "Sarah Chen" || m.Role != "CTO" {
		t.Errorf("minute chunk = %+v", m)
	}
	if m.Metadata["sentiment"] != "positive" {
		t.Errorf("minute metadata = %v, want sentiment carried through", m.Metadata)
	}

	a := byID["MTG_001_action_001"]
	if a.Text != "Draft the migration plan" {
		t.Errorf("action item text = %q, want the task field", a.Text)
	}
	if a.Metadata["assigned_to"] != "Lisa Park" || a.Metadata["priority"] != "high" {
		t.Errorf("action item metadata = %v", a.Metadata)
	}
}

func TestLoadEmbeddings_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "minutes.json", minuteJSON)

	_, err := LoadEmbeddings(dir, &mockStore{}, 768)
	if !errors.Is(err, retrieval.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestLoadEmbeddings_EmptyDir(t *testing.T) {
	if _, err := LoadEmbeddings(t.TempDir(), &mockStore{}, 3); err == nil {
		t.Error("expected error for directory with no embedding files")
	}
}

func TestLoadEmbeddings_MalformedEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{{{`},
		{"missing chunk_id", `[{"embedding": [0.1], "metadata": {"meeting_id": "M", "type": "minute", "text": "t"}}]`},
		{"missing meeting_id", `[{"chunk_id": "c1", "embedding": [0.1], "metadata": {"type": "minute", "text": "t"}}]`},
		{"unknown type", `[{"chunk_id": "c1", "embedding": [0.1], "metadata": {"meeting_id": "M", "type": "decision", "text": "t"}}]`},
		{"no text or task", `[{"chunk_id": "c1", "embedding": [0.1], "metadata": {"meeting_id": "M", "type": "minute"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bad.json", tt.content)
			if _, err := LoadEmbeddings(dir, &mockStore{}, 0); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
