package synthesis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vasanth/minuteman/internal/retrieval"
)

type mockGenerator struct {
	completeFn func(ctx context.Context, prompt string, maxTokens int) (string, error)
}

func (m *mockGenerator) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return m.completeFn(ctx, prompt, maxTokens)
}

func someResults() []retrieval.SearchResult {
	return []retrieval.SearchResult{
		rankedResult(1, "c1", "quarterly revenue increased fifteen percent"),
		rankedResult(2, "c2", "migration approved for third quarter"),
	}
}

func TestGenerate_HappyPath(t *testing.T) {
	gen := &mockGenerator{
		completeFn: func(_ context.Context, prompt string, _ int) (string, error) {
			return "Revenue increased fifteen percent [Source 1] and the migration was approved [Source 2].", nil
		},
	}
	s := NewSynthesizer(gen, nil, 0, nil)

	answer, err := s.Generate(context.Background(), "how did revenue do?", someResults())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer.Degraded {
		t.Error("Degraded set on a successful generation")
	}
	if answer.Confidence <= 0 || answer.Confidence > 1 {
		t.Errorf("Confidence = %f, want within (0,1]", answer.Confidence)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("Sources = %d, want 2", len(answer.Sources))
	}
	if !reflect.DeepEqual(answer.Citations, []int{1, 2}) {
		t.Errorf("Citations = %v, want [1 2]", answer.Citations)
	}
}

func TestGenerate_NoResults(t *testing.T) {
	called := false
	gen := &mockGenerator{
		completeFn: func(context.Context, string, int) (string, error) {
			called = true
			return "", nil
		},
	}
	s := NewSynthesizer(gen, nil, 0, nil)

	answer, err := s.Generate(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if called {
		t.Error("generator invoked with no results")
	}
	if !answer.Degraded || answer.Confidence != 0 {
		t.Errorf("answer = %+v, want degraded with confidence 0", answer)
	}
	if answer.Answer == "" {
		t.Error("expected an explanatory no-sources answer")
	}
}

func TestGenerate_EmptyOutputDegrades(t *testing.T) {
	gen := &mockGenerator{
		completeFn: func(context.Context, string, int) (string, error) {
			return "   \n ", nil
		},
	}
	s := NewSynthesizer(gen, nil, 0, nil)

	answer, err := s.Generate(context.Background(), "q", someResults())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !answer.Degraded {
		t.Error("Degraded not set for empty model output")
	}
	if answer.Confidence != degradedConfidence {
		t.Errorf("Confidence = %f, want %f", answer.Confidence, degradedConfidence)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	gen := &mockGenerator{
		completeFn: func(ctx context.Context, _ string, _ int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	s := NewSynthesizer(gen, nil, 10*time.Millisecond, nil)

	_, err := s.Generate(context.Background(), "q", someResults())
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Errorf("err = %v, want ErrGenerationTimeout", err)
	}
	if !errors.Is(err, ErrGeneration) {
		t.Error("timeout error should also match ErrGeneration")
	}
}

func TestGenerate_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &mockGenerator{
		completeFn: func(ctx context.Context, _ string, _ int) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	s := NewSynthesizer(gen, nil, time.Minute, nil)

	_, err := s.Generate(ctx, "q", someResults())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrGeneration) {
		t.Error("caller cancellation must not be reported as a generation failure")
	}
}

func TestGenerate_GeneratorError(t *testing.T) {
	gen := &mockGenerator{
		completeFn: func(context.Context, string, int) (string, error) {
			return "", errors.New("rate limited")
		},
	}
	s := NewSynthesizer(gen, nil, 0, nil)

	_, err := s.Generate(context.Background(), "q", someResults())
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
	if errors.Is(err, ErrGenerationTimeout) {
		t.Error("non-timeout failure reported as timeout")
	}
}

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		sources int
		want    []int
	}{
		{"none", "no markers here", 3, nil},
		{"single", "as noted [Source 2] earlier", 3, []int{2}},
		{"dedup and sort", "[Source 3] then [Source 1] then [Source 3]", 3, []int{1, 3}},
		{"case insensitive", "[source 1] and [SOURCE 2]", 2, []int{1, 2}},
		{"out of range skipped", "[Source 9] but [Source 1]", 2, []int{1}},
		{"plural form", "[Sources 2]", 3, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractCitations(tt.answer, tt.sources)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractCitations(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}
