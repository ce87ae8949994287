package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vasanth/minuteman/internal/llm"
	"github.com/vasanth/minuteman/internal/retrieval"
	"github.com/vasanth/minuteman/internal/scoring"
	"github.com/vasanth/minuteman/internal/trace"
)

var (
	// ErrGeneration indicates the generation capability failed or returned
	// an unusable response. Callers fall back to raw retrieval output.
	ErrGeneration = errors.New("generation failed")

	// ErrGenerationTimeout is the timeout sub-case of ErrGeneration.
	ErrGenerationTimeout = fmt.Errorf("%w: deadline exceeded", ErrGeneration)
)

const (
	defaultTimeout      = 30 * time.Second
	defaultAnswerTokens = 1000

	// degradedConfidence is assigned when the model returns empty or
	// malformed output. Explicitly low rather than absent.
	degradedConfidence = 0.1

	noSourcesAnswer = "I couldn't find any relevant information to answer your question."
)

// GeneratedAnswer is the output of synthesis. Confidence is always present
// and in [0,1], even when generation is degraded.
type GeneratedAnswer struct {
	Answer     string                   `json:"answer"`
	Confidence float64                  `json:"confidence"`
	Sources    []retrieval.SearchResult `json:"sources"`
	Citations  []int                    `json:"citations,omitempty"` // source numbers referenced in the answer
	Degraded   bool                     `json:"degraded,omitempty"`  // set when output was empty or no sources existed
}

// Synthesizer builds a prompt from ranked results, invokes the generation
// capability under a hard timeout, and post-processes the output.
type Synthesizer struct {
	generator llm.Generator
	prompts   *PromptBuilder
	timeout   time.Duration
	maxTokens int
	tracer    trace.Tracer
}

// NewSynthesizer creates a Synthesizer. timeout <= 0 selects the default
// (30s); tracer may be nil.
func NewSynthesizer(generator llm.Generator, prompts *PromptBuilder, timeout time.Duration, tracer trace.Tracer) *Synthesizer {
	if prompts == nil {
		prompts = NewPromptBuilder(0)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if tracer == nil {
		tracer = trace.Nop{}
	}
	return &Synthesizer{
		generator: generator,
		prompts:   prompts,
		timeout:   timeout,
		maxTokens: defaultAnswerTokens,
		tracer:    tracer,
	}
}

// Generate synthesizes a cited answer for the query from the ranked results.
// An empty result set yields a degraded "no sources" answer with confidence
// exactly 0, not an error. Generation failures return ErrGeneration (or its
// timeout sub-case); the pipeline is expected to fall back to raw results.
func (s *Synthesizer) Generate(ctx context.Context, query string, results []retrieval.SearchResult) (GeneratedAnswer, error) {
	if len(results) == 0 {
		return GeneratedAnswer{
			Answer:     noSourcesAnswer,
			Confidence: 0,
			Degraded:   true,
		}, nil
	}

	prompt, used := s.prompts.Build(query, results)

	start := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Complete(genCtx, prompt, s.maxTokens)
	if err != nil {
		// Distinguish our own timeout from the caller abandoning the query.
		if ctx.Err() != nil {
			return GeneratedAnswer{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || genCtx.Err() != nil {
			return GeneratedAnswer{}, fmt.Errorf("%w (after %s)", ErrGenerationTimeout, s.timeout)
		}
		return GeneratedAnswer{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	answer := strings.TrimSpace(text)
	if answer == "" {
		slog.Warn("synthesis: model returned empty output, degrading")
		return GeneratedAnswer{
			Answer:     noSourcesAnswer,
			Confidence: degradedConfidence,
			Sources:    used,
			Degraded:   true,
		}, nil
	}

	out := GeneratedAnswer{
		Answer:     answer,
		Confidence: scoring.Score(used, answer),
		Sources:    used,
		Citations:  extractCitations(answer, len(used)),
	}

	s.tracer.Emit("llm_generation", map[string]any{
		"query":         query,
		"sources_count": len(used),
		"answer_length": len(answer),
		"confidence":    out.Confidence,
		"generation_ms": time.Since(start).Milliseconds(),
	})

	return out, nil
}

var citationPattern = regexp.MustCompile(`(?i)\[sources?\s+(\d+)\]`)

// extractCitations collects the distinct source numbers the answer cites via
// [Source N] markers, sorted ascending. Best-effort: absent or out-of-range
// markers are simply skipped.
func extractCitations(answer string, sourceCount int) []int {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]struct{})
	var cites []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sourceCount {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		cites = append(cites, n)
	}
	sort.Ints(cites)
	return cites
}
