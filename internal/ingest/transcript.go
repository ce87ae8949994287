package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/vasanth/minuteman/internal/llm"
	"github.com/vasanth/minuteman/internal/retrieval"
)

// embedConcurrency bounds concurrent embedding calls so a large transcript
// doesn't overwhelm the embedding backend.
const embedConcurrency = 4

// Ingestor adds a single meeting transcript to the corpus online: extract
// text, split into speaker-turn chunks, embed, insert. The offline loader
// remains the bulk path; this covers ad-hoc additions.
type Ingestor struct {
	embedder llm.Embedder
	store    retrieval.VectorStore
}

// NewIngestor creates an Ingestor.
func NewIngestor(embedder llm.Embedder, store retrieval.VectorStore) *Ingestor {
	return &Ingestor{embedder: embedder, store: store}
}

// IngestTranscript reads a transcript file (.pdf, or plain text otherwise),
// chunks it, embeds every chunk, and inserts the result. meetingID defaults
// to the file name without extension. Returns the number of chunks added.
func (in *Ingestor) IngestTranscript(ctx context.Context, path, meetingID string) (int, error) {
	text, err := extractText(path)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("no text extracted from %s", path)
	}

	if meetingID == "" {
		base := filepath.Base(path)
		meetingID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	chunks := splitTurns(text, meetingID)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s", path)
	}

	if err := in.embedChunks(ctx, chunks); err != nil {
		return 0, err
	}

	if err := in.store.Insert(chunks); err != nil {
		return 0, fmt.Errorf("inserting chunks: %w", err)
	}
	return len(chunks), nil
}

// embedChunks fills in each chunk's embedding concurrently, bounded to
// embedConcurrency in-flight calls.
func (in *Ingestor) embedChunks(ctx context.Context, chunks []retrieval.Chunk) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := in.embedder.Embed(gCtx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("embedding chunk %s: %w", chunks[i].ID, err)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	return g.Wait()
}

// extractText returns the plain text of a transcript file. PDF content is
// extracted page by page; anything else is read as-is.
func extractText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, rdr, err := pdf.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening pdf %s: %w", path, err)
		}
		defer f.Close()

		var buf bytes.Buffer
		b, err := rdr.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("extracting pdf text from %s: %w", path, err)
		}
		if _, err := io.Copy(&buf, b); err != nil {
			return "", fmt.Errorf("reading pdf text from %s: %w", path, err)
		}
		return buf.String(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// speakerLine matches "Name: said something" transcript lines. Names are
// short and capitalized; anything longer is treated as ordinary prose so a
// sentence with a colon doesn't start a bogus turn.
var speakerLine = regexp.MustCompile(`^([A-Z][A-Za-z .'-]{0,40}?):\s+(.+)$`)

// splitTurns chunks a transcript into speaker-level minutes. Consecutive
// lines without a speaker prefix are folded into the current turn; leading
// prose before any speaker becomes a speakerless minute.
func splitTurns(text, meetingID string) []retrieval.Chunk {
	var chunks []retrieval.Chunk

	flush := func(speaker string, parts []string) {
		body := strings.TrimSpace(strings.Join(parts, " "))
		if body == "" {
			return
		}
		chunks = append(chunks, retrieval.Chunk{
			ID:        fmt.Sprintf("%s_%03d", meetingID, len(chunks)+1),
			MeetingID: meetingID,
			Type:      retrieval.TypeMinute,
			Speaker:   speaker,
			Text:      body,
			Metadata:  map[string]string{"file_source": "transcript"},
		})
	}

	var speaker string
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := speakerLine.FindStringSubmatch(line); m != nil {
			flush(speaker, parts)
			speaker = m[1]
			parts = []string{m[2]}
			continue
		}
		parts = append(parts, line)
	}
	flush(speaker, parts)

	return chunks
}
