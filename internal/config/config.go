// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	FrontendURL      string
	LogLevel         string
	StoreBackend     string // "memory" or "sqlite"
	DBPath           string
	SessionRetention time.Duration
	LLM              LLMConfig
	Coach            CoachConfig
	Triggers         TriggerConfig
	Sweeper          SweeperConfig
	RateLimit        RateLimitConfig
	NATS             NATSConfig
	ConversationLog  ConversationLogConfig
	MetricsNamespace string
}

// LLMConfig configures the OpenAI-compatible gateway.
type LLMConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	Timeout             time.Duration
	NudgeMaxTokens      int
	NudgeTemperature    float32
	SummaryMaxTokens    int
	AnalysisMaxTokens   int
	AnalysisTemperature float32
}

// CoachConfig controls the consent flow and live nudges.
type CoachConfig struct {
	FeedbackCooldown        time.Duration
	NudgeWindow             int
	RequireConsentForIngest bool
}

// TriggerConfig tunes the buffered-transcript actions.
type TriggerConfig struct {
	MisinfoMinSegments int
	MisinfoWindow      int
	InsightMinSegments int
	InsightWindow      int
	BooksMinSegments   int
	BooksEvery         int
	BooksWindow        int
}

// SweeperConfig controls eviction of idle transcript buffers.
type SweeperConfig struct {
	BufferIdleTTL time.Duration
	Interval      time.Duration
}

// RateLimitConfig bounds ingestion requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// NATSConfig enables update publishing when URL is set.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		DBPath:           getEnv("DB_PATH", "./data/coach.db"),
		SessionRetention: getEnvDuration("SESSION_RETENTION", 7*24*time.Hour),
		LLM: LLMConfig{
			APIKey:              getEnv("LLM_API_KEY", os.Getenv("BASETEN_API_KEY")),
			BaseURL:             getEnv("LLM_BASE_URL", "https://inference.baseten.co/v1"),
			Model:               getEnv("LLM_MODEL", "openai/gpt-oss-120b"),
			Timeout:             getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			NudgeMaxTokens:      getEnvInt("NUDGE_MAX_TOKENS", 150),
			NudgeTemperature:    getEnvFloat32("NUDGE_TEMPERATURE", 0.7),
			SummaryMaxTokens:    getEnvInt("SUMMARY_MAX_TOKENS", 400),
			AnalysisMaxTokens:   getEnvInt("ANALYSIS_MAX_TOKENS", 300),
			AnalysisTemperature: getEnvFloat32("ANALYSIS_TEMPERATURE", 0),
		},
		Coach: CoachConfig{
			FeedbackCooldown:        getEnvDuration("FEEDBACK_COOLDOWN", 7500*time.Millisecond),
			NudgeWindow:             getEnvInt("NUDGE_WINDOW", 15),
			RequireConsentForIngest: getEnvBool("REQUIRE_CONSENT_FOR_INGEST", false),
		},
		Triggers: TriggerConfig{
			MisinfoMinSegments: getEnvInt("MISINFO_MIN_SEGMENTS", 5),
			MisinfoWindow:      getEnvInt("MISINFO_WINDOW", 10),
			InsightMinSegments: getEnvInt("INSIGHT_MIN_SEGMENTS", 3),
			InsightWindow:      getEnvInt("INSIGHT_WINDOW", 15),
			BooksMinSegments:   getEnvInt("BOOKS_MIN_SEGMENTS", 10),
			BooksEvery:         getEnvInt("BOOKS_EVERY", 10),
			BooksWindow:        getEnvInt("BOOKS_WINDOW", 0),
		},
		Sweeper: SweeperConfig{
			BufferIdleTTL: getEnvDuration("BUFFER_IDLE_TTL", 30*time.Minute),
			Interval:      getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 120),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "coach.updates"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000),
		},
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "coach"),
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
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty with the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or sqlite, got %q", c.StoreBackend)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.NudgeMaxTokens <= 0 || c.LLM.SummaryMaxTokens <= 0 || c.LLM.AnalysisMaxTokens <= 0 {
		return fmt.Errorf("max token settings must be > 0")
	}
	if c.Coach.FeedbackCooldown <= 0 {
		return fmt.Errorf("FEEDBACK_COOLDOWN must be > 0")
	}
	if c.Coach.NudgeWindow <= 0 {
		return fmt.Errorf("NUDGE_WINDOW must be > 0")
	}
	if c.Triggers.MisinfoWindow <= 0 || c.Triggers.InsightWindow <= 0 {
		return fmt.Errorf("trigger windows must be > 0")
	}
	if c.Triggers.BooksWindow < 0 {
		return fmt.Errorf("BOOKS_WINDOW must be >= 0")
	}
	if c.Triggers.BooksEvery <= 0 {
		return fmt.Errorf("BOOKS_EVERY must be > 0")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate limit settings must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
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

// AllowedOrigins returns the CORS origin list.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
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

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

// getEnvDuration accepts Go duration strings ("7.5s") or plain seconds ("7.5").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
