package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	LLM        LLMConfig
	Generation GenerationConfig
	Trace      TraceConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// LLMConfig selects and configures the embedding/generation backend.
// Provider is "openai" (any OpenAI-compatible endpoint) or "ollama".
type LLMConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Dimension  int
}

type GenerationConfig struct {
	Timeout          time.Duration
	MaxContextTokens int
}

// TraceConfig points at an optional event collector. An empty endpoint
// disables tracing without affecting anything else.
type TraceConfig struct {
	Endpoint string
	APIKey   string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider:   "openai",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
			Dimension:  1536,
		},
		Generation: GenerationConfig{
			Timeout:          30 * time.Second,
			MaxContextTokens: 4000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "minuteman")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minuteman"
	}
	return filepath.Join(home, ".local", "share", "minuteman")
}

// Load reads configuration from an optional .env file and MINUTEMAN_*
// environment variables layered over compile-time defaults.
//
// API credentials are opaque to the core: a missing LLM key only disables
// the generate/detailed modes (raw retrieval still works against a corpus
// loaded with pre-computed embeddings), and a missing trace endpoint only
// disables observability.
func Load() (Config, error) {
	// Best-effort: absence of a .env file is the common case.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnvInt("MINUTEMAN_PORT", cfg.Server.Port)
	cfg.Storage.DataDir = getEnv("MINUTEMAN_DATA_DIR", cfg.Storage.DataDir)

	cfg.LLM.Provider = getEnv("MINUTEMAN_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.APIKey = getEnv("MINUTEMAN_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.LLM.BaseURL = getEnv("MINUTEMAN_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.ChatModel = getEnv("MINUTEMAN_CHAT_MODEL", cfg.LLM.ChatModel)
	cfg.LLM.EmbedModel = getEnv("MINUTEMAN_EMBED_MODEL", cfg.LLM.EmbedModel)
	cfg.LLM.Dimension = getEnvInt("MINUTEMAN_EMBED_DIMENSION", cfg.LLM.Dimension)

	if cfg.LLM.Provider == "ollama" {
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "http://localhost:11434"
		}
		if !envSet("MINUTEMAN_CHAT_MODEL") {
			cfg.LLM.ChatModel = "mistral-nemo"
		}
		if !envSet("MINUTEMAN_EMBED_MODEL") {
			cfg.LLM.EmbedModel = "nomic-embed-text"
		}
		if !envSet("MINUTEMAN_EMBED_DIMENSION") {
			cfg.LLM.Dimension = 768
		}
	}

	cfg.Generation.Timeout = getEnvDuration("MINUTEMAN_GENERATION_TIMEOUT", cfg.Generation.Timeout)
	cfg.Generation.MaxContextTokens = getEnvInt("MINUTEMAN_MAX_CONTEXT_TOKENS", cfg.Generation.MaxContextTokens)

	cfg.Trace.Endpoint = getEnv("MINUTEMAN_TRACE_ENDPOINT", cfg.Trace.Endpoint)
	cfg.Trace.APIKey = getEnv("MINUTEMAN_TRACE_API_KEY", cfg.Trace.APIKey)

	cfg.Log.Level = getEnv("MINUTEMAN_LOG_LEVEL", cfg.Log.Level)
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown LLM provider %q (want openai or ollama)", c.LLM.Provider)
	}
	if c.LLM.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.LLM.Dimension)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %s", c.Generation.Timeout)
	}
	return nil
}

// GenerationAvailable reports whether the configuration supports the
// generate/detailed modes.
func (c Config) GenerationAvailable() bool {
	if c.LLM.Provider == "ollama" {
		return true
	}
	return c.LLM.APIKey != ""
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
