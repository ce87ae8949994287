package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/vasanth/minuteman/internal/retrieval"
)

// parseConcurrency bounds how many embedding files are parsed at once.
const parseConcurrency = 4

// embeddedChunk is one entry of an embeddings JSON file as produced by the
// offline chunk-and-embed pipeline.
type embeddedChunk struct {
	ChunkID   string         `json:"chunk_id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// LoadEmbeddings reads every *.json embeddings file in dir and bulk-inserts
// the chunks into the store. expectedDim, when positive, rejects vectors of
// any other length with retrieval.ErrDimensionMismatch. Returns the number
// of chunks loaded.
func LoadEmbeddings(dir string, store retrieval.VectorStore, expectedDim int) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("globbing %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no embedding files found in %s", dir)
	}
	sort.Strings(paths)

	perFile := make([][]retrieval.Chunk, len(paths))
	var g errgroup.Group
	g.SetLimit(parseConcurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			chunks, err := parseEmbeddingFile(path, expectedDim)
			if err != nil {
				return err
			}
			perFile[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, chunks := range perFile {
		if len(chunks) == 0 {
			continue
		}
		if err := store.Insert(chunks); err != nil {
			return total, fmt.Errorf("inserting chunks: %w", err)
		}
		total += len(chunks)
	}
	return total, nil
}

func parseEmbeddingFile(path string, expectedDim int) ([]retrieval.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries []embeddedChunk
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	fileName := filepath.Base(path)
	chunks := make([]retrieval.Chunk, 0, len(entries))
	for _, e := range entries {
		if e.ChunkID == "" {
			return nil, fmt.Errorf("%s: entry missing chunk_id", fileName)
		}
		if expectedDim > 0 && len(e.Embedding) != expectedDim {
			return nil, fmt.Errorf("%w: chunk %s in %s has %d dimensions, expected %d",
				retrieval.ErrDimensionMismatch, e.ChunkID, fileName, len(e.Embedding), expectedDim)
		}

		c, err := chunkFromMetadata(e, fileName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// chunkFromMetadata maps the offline pipeline's loosely typed metadata onto
// a Chunk. Action items carry their text under "task" rather than "text".
func chunkFromMetadata(e embeddedChunk, fileName string) (retrieval.Chunk, error) {
	typ, err := retrieval.ParseChunkType(metaString(e.Metadata, "type"))
	if err != nil {
		return retrieval.Chunk{}, fmt.Errorf("chunk %s: %w", e.ChunkID, err)
	}

	text := metaString(e.Metadata, "text")
	if text == "" {
		text = metaString(e.Metadata, "task")
	}
	if text == "" {
		return retrieval.Chunk{}, fmt.Errorf("chunk %s: no text or task", e.ChunkID)
	}

	c := retrieval.Chunk{
		ID:        e.ChunkID,
		MeetingID: metaString(e.Metadata, "meeting_id"),
		Type:      typ,
		Speaker:   metaString(e.Metadata, "speaker"),
		Role:      metaString(e.Metadata, "role"),
		Text:      text,
		Embedding: e.Embedding,
		Metadata:  map[string]string{"file_source": fileName},
	}
	if c.MeetingID == "" {
		return retrieval.Chunk{}, fmt.Errorf("chunk %s: no meeting_id", e.ChunkID)
	}

	// Carry remaining scalar metadata (assigned_to, due_date, priority,
	// sentiment, timestamp, ...) through as free-form fields.
	known := map[string]struct{}{
		"chunk_id": {}, "meeting_id": {}, "type": {},
		"speaker": {}, "role": {}, "text": {}, "task": {},
	}
	for k, v := range e.Metadata {
		if _, skip := known[k]; skip || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			c.Metadata[k] = val
		case float64:
			c.Metadata[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			c.Metadata[k] = strconv.FormatBool(val)
		}
	}

	return c, nil
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
