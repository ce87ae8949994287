package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vasanth/minuteman/internal/retrieval"
)

// ErrInvalidFilter indicates an unrecognized filter key or an invalid value
// for a closed-enumeration filter.
var ErrInvalidFilter = errors.New("invalid filter")

// Mode selects how a query is answered.
type Mode string

const (
	// ModeGenerate retrieves, synthesizes an answer, and returns it with a
	// confidence score. The default.
	ModeGenerate Mode = "generate"

	// ModeRaw returns ranked retrieval results with no generation.
	ModeRaw Mode = "raw"

	// ModeDetailed behaves like ModeGenerate but also returns the search
	// results used, for transparency.
	ModeDetailed Mode = "detailed"
)

// Request is a single typed query against the pipeline. Construct directly,
// or via ParseRequest for the text command surface.
type Request struct {
	Query     string           `json:"query"`
	Mode      Mode             `json:"mode"`
	Filter    retrieval.Filter `json:"filter"`
	Limit     int              `json:"limit"`
	SessionID string           `json:"session_id,omitempty"`
}

// ParseRequest translates the convenience text surface into a typed Request:
// an optional "raw:" or "detailed:" mode prefix, and "filter:key=value"
// tokens anywhere in the text (keys: type, meeting, speaker). Everything
// else is query text. Text with no recognized prefix defaults to generate
// mode. Unknown filter keys, and type values outside the chunk-type
// enumeration, fail with ErrInvalidFilter.
func ParseRequest(raw string) (Request, error) {
	req := Request{Mode: ModeGenerate}

	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, "raw:"):
		req.Mode = ModeRaw
		text = strings.TrimSpace(strings.TrimPrefix(text, "raw:"))
	case strings.HasPrefix(text, "detailed:"):
		req.Mode = ModeDetailed
		text = strings.TrimSpace(strings.TrimPrefix(text, "detailed:"))
	}

	var queryParts []string
	for _, part := range strings.Fields(text) {
		if !strings.HasPrefix(part, "filter:") {
			queryParts = append(queryParts, part)
			continue
		}

		spec := strings.TrimPrefix(part, "filter:")
		key, value, ok := strings.Cut(spec, "=")
		if !ok || value == "" {
			return Request{}, fmt.Errorf("%w: malformed filter %q, want filter:key=value", ErrInvalidFilter, part)
		}

		switch key {
		case "type":
			ct, err := retrieval.ParseChunkType(value)
			if err != nil {
				return Request{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			}
			req.Filter.Type = ct
		case "meeting":
			req.Filter.MeetingID = value
		case "speaker":
			req.Filter.Speaker = value
		default:
			return Request{}, fmt.Errorf("%w: unknown filter key %q", ErrInvalidFilter, key)
		}
	}

	req.Query = strings.Join(queryParts, " ")
	return req, nil
}
