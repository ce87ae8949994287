package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides chunk storage and brute-force cosine similarity
// search backed by SQLite. This is the default implementation of VectorStore.
//
// When the chunk count exceeds ~100K and query latency becomes noticeable,
// consider migrating to an ANN-indexed backend. Use ExportAll() to extract
// all chunks for migration.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for chunk operations.
// The chunks table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const chunkColumns = "id, meeting_id, chunk_type, speaker, role, text, embedding, metadata, created_at"

// Insert adds chunks to the chunks table in one transaction.
func (s *SQLiteStore) Insert(chunks []Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (` + chunkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob := encodeFloat32s(c.Embedding)
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding metadata for %s: %w", c.ID, err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(c.ID, c.MeetingID, string(c.Type), c.Speaker, c.Role, c.Text, blob, meta, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// idScore holds only the ID and score during the scan phase of Search.
// Full chunk details are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Search performs brute-force cosine similarity search over all chunks
// satisfying the filter, returning the top-K most similar. A stored vector
// whose length differs from the query vector's fails the whole search with
// ErrDimensionMismatch.
func (s *SQLiteStore) Search(vector []float32, f Filter, topK int) ([]ScoredChunk, error) {
	where, args := filterClause(f)

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.Query(`SELECT id, embedding FROM chunks`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		if len(buf) != len(vector) {
			return nil, fmt.Errorf("%w: chunk %s has %d dimensions, query has %d",
				ErrDimensionMismatch, id, len(buf), len(vector))
		}

		score := cosine(vector, buf, queryNorm)
		cand := idScore{ID: id, Score: score}
		if h.Len() < topK {
			heap.Push(h, cand)
		} else if worseThan((*h)[0], cand) {
			(*h)[0] = cand
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full chunks only for the top-K IDs.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]interface{}, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT ` + chunkColumns + `
		FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredChunk
	for fullRows.Next() {
		c, err := scanChunk(fullRows)
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredChunk{Chunk: c, Score: scores[c.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full chunks: %w", err)
	}

	// Sort results by score descending (IN query doesn't preserve order).
	sortByScore(results)

	return results, nil
}

// filterClause builds the WHERE clause for a Filter. Set fields combine with
// logical AND; a zero filter yields an empty clause.
func filterClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Type != "" {
		conds = append(conds, "chunk_type = ?")
		args = append(args, string(f.Type))
	}
	if f.MeetingID != "" {
		conds = append(conds, "meeting_id = ?")
		args = append(args, f.MeetingID)
	}
	if f.Speaker != "" {
		conds = append(conds, "speaker = ?")
		args = append(args, f.Speaker)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// worseThan reports whether a ranks strictly below b: lower score, or equal
// score with a lexicographically larger ID. The ID tie-break keeps the
// result set deterministic across repeated searches.
func worseThan(a, b idScore) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// sortByScore sorts ScoredChunks by score descending, ties by ascending ID.
// Used for small slices (topK).
func sortByScore(results []ScoredChunk) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && scoredLess(results[j-1], results[j]); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func scoredLess(a, b ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// GetByIDs returns chunks matching the given IDs.
func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	queryArgs := make([]interface{}, len(ids))
	for i, id := range ids {
		queryArgs[i] = id
	}

	query := `SELECT ` + chunkColumns + `
		FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying by IDs: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// Stats returns corpus-level statistics: totals, per-type and per-meeting
// breakdowns, and the stored vector dimension.
func (s *SQLiteStore) Stats() (CorpusStats, error) {
	stats := CorpusStats{
		ByType:    make(map[string]int),
		ByMeeting: make(map[string]int),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return CorpusStats{}, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.db.Query("SELECT chunk_type, COUNT(*) FROM chunks GROUP BY chunk_type")
	if err != nil {
		return CorpusStats{}, fmt.Errorf("counting by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return CorpusStats{}, err
		}
		stats.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return CorpusStats{}, err
	}

	mRows, err := s.db.Query("SELECT meeting_id, COUNT(*) FROM chunks GROUP BY meeting_id")
	if err != nil {
		return CorpusStats{}, fmt.Errorf("counting by meeting: %w", err)
	}
	defer mRows.Close()
	for mRows.Next() {
		var m string
		var n int
		if err := mRows.Scan(&m, &n); err != nil {
			return CorpusStats{}, err
		}
		stats.ByMeeting[m] = n
	}
	if err := mRows.Err(); err != nil {
		return CorpusStats{}, err
	}

	var blob []byte
	err = s.db.QueryRow("SELECT embedding FROM chunks LIMIT 1").Scan(&blob)
	switch {
	case err == sql.ErrNoRows:
		// Empty corpus: dimension unknown.
	case err != nil:
		return CorpusStats{}, fmt.Errorf("sampling embedding: %w", err)
	default:
		stats.Dimension = len(blob) / 4
	}

	return stats, nil
}

// ExportAll returns all chunks, oldest first. Used for data migration to
// another VectorStore backend.
func (s *SQLiteStore) ExportAll() ([]Chunk, error) {
	rows, err := s.db.Query(`SELECT ` + chunkColumns + ` FROM chunks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying all chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// scanChunk reads one full chunk row in chunkColumns order.
func scanChunk(rows *sql.Rows) (Chunk, error) {
	var c Chunk
	var typ string
	var speaker, role sql.NullString
	var blob []byte
	var meta, createdAt string
	if err := rows.Scan(&c.ID, &c.MeetingID, &typ, &speaker, &role, &c.Text, &blob, &meta, &createdAt); err != nil {
		return Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Type = ChunkType(typ)
	c.Speaker = speaker.String
	c.Role = role.String

	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
	}
	c.Embedding = embedding

	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return Chunk{}, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
		}
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Chunk{}, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
	}
	c.CreatedAt = t
	return c, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a. Lengths must match; the
// caller checks dimensions before calling.
func cosine(a, b []float32, aNorm float32) float32 {
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered worst-first, so the root is
// always the candidate to evict. Used during the scan phase of Search.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return worseThan(h[i], h[j]) }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
