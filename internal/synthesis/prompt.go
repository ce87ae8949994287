package synthesis

import (
	"fmt"
	"strings"

	"github.com/vasanth/minuteman/internal/retrieval"
)

const (
	defaultMaxContextTokens = 4000

	// maxSources bounds how many excerpts are offered to the model, matching
	// the number of sources cited back to the user.
	maxSources = 5
)

const instructionsHeader = `You are an AI assistant helping analyze meeting records. Based on the retrieved meeting information below, provide a comprehensive and accurate answer to the user's question.`

const instructionsFooter = `Instructions:
- Provide a clear, comprehensive answer based only on the information provided
- If multiple perspectives are mentioned, include them in your response
- Cite sources as [Source N] when drawing on a specific excerpt
- If the information is insufficient to fully answer the question, state what you can determine and what limitations exist
- Be conversational but professional
- Focus on insights that would be valuable for business decision-making

Answer:`

// PromptBuilder assembles bounded-size generation prompts from ranked
// search results.
type PromptBuilder struct {
	MaxContextTokens int
}

// NewPromptBuilder creates a PromptBuilder with the given token budget for
// injected excerpts. If maxContextTokens <= 0, the default (4000) is used.
func NewPromptBuilder(maxContextTokens int) *PromptBuilder {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &PromptBuilder{MaxContextTokens: maxContextTokens}
}

// Build returns the generation prompt and the results whose excerpts made it
// in. Excerpts are added in rank order; when the budget runs out the
// remaining (lowest-ranked) excerpts are dropped whole, never truncated
// mid-excerpt.
func (b *PromptBuilder) Build(query string, results []retrieval.SearchResult) (string, []retrieval.SearchResult) {
	if len(results) > maxSources {
		results = results[:maxSources]
	}

	var sb strings.Builder
	sb.WriteString(instructionsHeader)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRetrieved Meeting Information:\n")

	remaining := b.MaxContextTokens
	var used []retrieval.SearchResult
	for i, r := range results {
		excerpt := formatExcerpt(i+1, r)
		tokens := EstimateTokens(excerpt)
		if tokens > remaining {
			break
		}
		sb.WriteString(excerpt)
		remaining -= tokens
		used = append(used, r)
	}

	sb.WriteString("\n")
	sb.WriteString(instructionsFooter)
	return sb.String(), used
}

func formatExcerpt(n int, r retrieval.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source %d:\n", n)
	fmt.Fprintf(&sb, "Meeting: %s\n", r.Chunk.MeetingID)
	if r.Chunk.Speaker != "" {
		if r.Chunk.Role != "" {
			fmt.Fprintf(&sb, "Speaker: %s (%s)\n", r.Chunk.Speaker, r.Chunk.Role)
		} else {
			fmt.Fprintf(&sb, "Speaker: %s\n", r.Chunk.Speaker)
		}
	}
	fmt.Fprintf(&sb, "Content: %s\n\n", r.Chunk.Text)
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
