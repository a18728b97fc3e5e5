// Package config loads application configuration from environment variables.
// All variables use the LESSON_ prefix. Values from .env.local and .env in
// the working directory are applied first without overriding the process
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFiles are the dotenv files Load reads, highest precedence first.
var EnvFiles = []string{".env.local", ".env"}

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Cache           CacheConfig
	Search          SearchConfig
	AI              AIConfig
	Taxonomy        TaxonomyConfig
	Batch           BatchConfig
	Log             LogConfig
	AcademicProgram string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables
// caching.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// SearchConfig holds the document search backend settings.
type SearchConfig struct {
	URL        string
	APIKey     string
	Collection string
	QueryBy    string
	Limit      int
	Timeout    time.Duration
}

// AIConfig holds configuration for all AI providers. Providers are tried
// in the order Mistral, OpenAI, Anthropic, Google.
type AIConfig struct {
	Mistral       ProviderConfig
	OpenAI        ProviderConfig
	Anthropic     ProviderConfig
	Google        ProviderConfig
	Timeout       time.Duration
	MaxTokens     int
	Temperature   float64
	RetryAttempts int
}

// ProviderConfig holds one provider's credentials and overrides.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// TaxonomyConfig holds the taxonomy source and matching settings.
type TaxonomyConfig struct {
	Path           string
	MatchThreshold float64
}

// BatchConfig holds batch generation settings.
type BatchConfig struct {
	OutputDir   string
	PauseEvery  int
	Pause       time.Duration
	WriteReport bool // also write the run summary as XLSX
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LESSON_ prefix.
func Load() (*Config, error) {
	for _, f := range EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LESSON_SERVER_PORT", 8080),
			Host: envStr("LESSON_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LESSON_DATABASE_URL", ""),
			MaxConns: envInt("LESSON_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LESSON_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("LESSON_CACHE_URL", ""),
			TTL: envDuration("LESSON_CACHE_TTL", 24*time.Hour),
		},
		Search: SearchConfig{
			URL:        envStr("LESSON_SEARCH_URL", ""),
			APIKey:     envStr("LESSON_SEARCH_API_KEY", ""),
			Collection: envStr("LESSON_SEARCH_COLLECTION", "lesson_documents"),
			QueryBy:    envStr("LESSON_SEARCH_QUERY_BY", "title,content"),
			Limit:      envInt("LESSON_SEARCH_LIMIT", 15),
			Timeout:    envDuration("LESSON_SEARCH_TIMEOUT", 5*time.Second),
		},
		AI: AIConfig{
			Mistral:       providerConfig("MISTRAL"),
			OpenAI:        providerConfig("OPENAI"),
			Anthropic:     providerConfig("ANTHROPIC"),
			Google:        providerConfig("GOOGLE"),
			Timeout:       envDuration("LESSON_AI_TIMEOUT", 60*time.Second),
			MaxTokens:     envInt("LESSON_AI_MAX_TOKENS", 2500),
			Temperature:   envFloat("LESSON_AI_TEMPERATURE", 0.3),
			RetryAttempts: envInt("LESSON_AI_RETRY_ATTEMPTS", 2),
		},
		Taxonomy: TaxonomyConfig{
			Path:           envStr("LESSON_TAXONOMY_PATH", "./resources/program.json"),
			MatchThreshold: envFloat("LESSON_MATCH_THRESHOLD", 0.6),
		},
		Batch: BatchConfig{
			OutputDir:   envStr("LESSON_OUTPUT_DIR", "./resources/data"),
			PauseEvery:  envInt("LESSON_BATCH_PAUSE_EVERY", 5),
			Pause:       envDuration("LESSON_BATCH_PAUSE", 2*time.Second),
			WriteReport: envBool("LESSON_BATCH_XLSX", true),
		},
		Log: LogConfig{
			Level:  envStr("LESSON_LOG_LEVEL", "info"),
			Format: envStr("LESSON_LOG_FORMAT", "json"),
		},
		AcademicProgram: envStr("LESSON_ACADEMIC_PROGRAM", "French Medical Education"),
	}

	return cfg, nil
}

func providerConfig(name string) ProviderConfig {
	prefix := "LESSON_AI_" + name + "_"
	return ProviderConfig{
		APIKey:  envStr(prefix+"API_KEY", ""),
		Model:   envStr(prefix+"MODEL", ""),
		BaseURL: envStr(prefix+"BASE_URL", ""),
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Search.URL == "" {
		return fmt.Errorf("LESSON_SEARCH_URL is required")
	}
	if c.Search.APIKey == "" {
		return fmt.Errorf("LESSON_SEARCH_API_KEY is required")
	}

	if !c.HasAIProvider() {
		return fmt.Errorf("at least one AI provider must be configured")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LESSON_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.Taxonomy.MatchThreshold <= 0 || c.Taxonomy.MatchThreshold > 1 {
		return fmt.Errorf("LESSON_MATCH_THRESHOLD must be in (0, 1], got %v", c.Taxonomy.MatchThreshold)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.Mistral.APIKey != "" ||
		c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.Google.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
