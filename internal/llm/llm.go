package llm

import "context"

// Embedder maps a text string to a fixed-dimension vector. The same embedder
// configuration must be used for corpus chunks (offline) and live queries,
// otherwise similarity scores are meaningless.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector size this embedder produces.
	Dimension() int
}

// Generator produces a text completion for a prompt. Implementations must
// honor ctx cancellation and deadlines; a timed-out call returns an error
// wrapping context.DeadlineExceeded so callers can distinguish it.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
