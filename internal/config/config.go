// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGRPC      = "grpc"
)

// Duplicate-guard stores.
const (
	DedupStoreSQLite = "sqlite"
	DedupStoreMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	CORSOrigins     []string
	DBPath          string
	LogLevel        string
	LogFile         string
	Generator       GeneratorConfig
	Chat            ChatConfig
	Auth            AuthConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// GeneratorConfig selects and configures the text-generation backend.
type GeneratorConfig struct {
	Provider        string
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GRPCAddr        string
	Timeout         time.Duration
	MaxTokens       int
}

// ChatConfig tunes the orchestration loop.
type ChatConfig struct {
	HistoryLimit     int
	DedupWindow      time.Duration
	TitleTimeout     time.Duration
	PatternsFile     string
	MaxRequestBytes  int64
	DedupSweepPeriod time.Duration
	// DedupStore is where duplicate-guard fingerprints live: sqlite or memory.
	DedupStore string
}

// AuthConfig controls bearer-token identity. An empty secret falls back to anonymous cookies.
type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
}

// RateLimitConfig bounds chat turns per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DBPath:      getEnv("DB_PATH", "./data/aidiary.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		Generator: GeneratorConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Model:           getEnv("LLM_MODEL", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			GRPCAddr:        getEnv("GENERATOR_GRPC_ADDR", "localhost:50051"),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 1024),
		},
		Chat: ChatConfig{
			HistoryLimit:     getEnvInt("CHAT_HISTORY_LIMIT", 10),
			DedupWindow:      getEnvDuration("CHAT_DEDUP_WINDOW", 30*time.Second),
			TitleTimeout:     getEnvDuration("TITLE_TIMEOUT", 10*time.Second),
			PatternsFile:     getEnv("CLASSIFIER_PATTERNS_FILE", ""),
			MaxRequestBytes:  int64(getEnvInt("CHAT_MAX_REQUEST_BYTES", 1<<20)),
			DedupSweepPeriod: getEnvDuration("CHAT_DEDUP_SWEEP_PERIOD", 5*time.Minute),
			DedupStore:       getEnv("CHAT_DEDUP_STORE", DedupStoreSQLite),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Generator.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGRPC:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openai, anthropic, grpc (got %q)", c.Generator.Provider)
	}
	if c.Generator.Provider == ProviderGRPC && c.Generator.GRPCAddr == "" {
		return fmt.Errorf("GENERATOR_GRPC_ADDR cannot be empty when LLM_PROVIDER=grpc")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be > 0")
	}
	if c.Chat.DedupWindow <= 0 {
		return fmt.Errorf("CHAT_DEDUP_WINDOW must be > 0")
	}
	if c.Chat.DedupStore != DedupStoreSQLite && c.Chat.DedupStore != DedupStoreMemory {
		return fmt.Errorf("CHAT_DEDUP_STORE must be sqlite or memory (got %q)", c.Chat.DedupStore)
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank items.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
