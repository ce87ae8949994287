package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vasanth/minuteman/internal/config"
	"github.com/vasanth/minuteman/internal/llm"
	"github.com/vasanth/minuteman/internal/pipeline"
	"github.com/vasanth/minuteman/internal/retrieval"
	"github.com/vasanth/minuteman/internal/session"
	"github.com/vasanth/minuteman/internal/storage"
	"github.com/vasanth/minuteman/internal/synthesis"
	"github.com/vasanth/minuteman/internal/trace"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "minuteman",
	Short: "Ask questions over a corpus of meeting transcripts",
	Long: `minuteman answers natural-language questions over meeting transcripts by
retrieving semantically relevant fragments and synthesizing a cited,
confidence-scored answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired pipeline components a command needs.
type app struct {
	cfg      config.Config
	store    *storage.Store
	vectors  *retrieval.SQLiteStore
	embedder llm.Embedder
	pipeline *pipeline.Pipeline
	sessions *session.Tracker
}

// buildApp loads config, opens storage, and wires the full pipeline.
// Callers must Close the returned app.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	initLogging(cfg)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var tracer trace.Tracer = trace.Nop{}
	if cfg.Trace.Endpoint != "" {
		tracer = trace.NewHTTP(cfg.Trace.Endpoint, cfg.Trace.APIKey)
	}

	embedder, generator, err := buildLLM(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectors, tracer)

	var synth pipeline.Synthesizer
	if generator != nil {
		prompts := synthesis.NewPromptBuilder(cfg.Generation.MaxContextTokens)
		synth = synthesis.NewSynthesizer(generator, prompts, cfg.Generation.Timeout, tracer)
	} else {
		slog.Warn("no generation credentials configured; generate/detailed modes will degrade to raw results")
	}

	sessions := session.NewTracker()

	return &app{
		cfg:      cfg,
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		pipeline: pipeline.New(retriever, synth, sessions, tracer),
		sessions: sessions,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// buildLLM constructs the embedding and generation clients for the
// configured provider. The generator is nil when generation credentials
// are missing; embedding-dependent commands still need a key for openai.
func buildLLM(cfg config.Config) (llm.Embedder, llm.Generator, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		client := llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.ChatModel, cfg.LLM.EmbedModel, cfg.LLM.Dimension)
		return client, client, nil

	case "openai":
		if cfg.LLM.APIKey == "" {
			// Raw retrieval over pre-computed embeddings must keep working,
			// so a missing key yields a client that fails only when called.
			return unavailableEmbedder{dimension: cfg.LLM.Dimension}, nil, nil
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			ChatModel:  cfg.LLM.ChatModel,
			EmbedModel: cfg.LLM.EmbedModel,
			Dimension:  cfg.LLM.Dimension,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
}

// unavailableEmbedder fails on use rather than at startup, so commands that
// never embed (stats, sessions) work without credentials.
type unavailableEmbedder struct {
	dimension int
}

func (u unavailableEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("no embedding credentials configured (set MINUTEMAN_API_KEY)")
}

func (u unavailableEmbedder) Dimension() int {
	return u.dimension
}

func initLogging(cfg config.Config) {
	level := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the minuteman version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "minuteman version %s\n", version)
	},
}

// elapsedSeconds formats a duration the way query timings are displayed.
func elapsedSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f seconds", d.Seconds())
}
