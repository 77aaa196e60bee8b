package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ProvidersConfig selects the vision engines and models for page
// description.
type ProvidersConfig struct {
	PrimaryEngine   string // "openai"|"anthropic"
	SecondaryEngine string // "anthropic"|"openai"
	OpenAIModel     string
	AnthropicModel  string
	RequestTimeout  time.Duration
	BreakerCooldown time.Duration
	SystemPrompt    string
}

// AnalysisConfig tunes the per-document page pipeline.
type AnalysisConfig struct {
	Parallel      bool
	Workers       int
	OutputDir     string
	DPIMultiplier float64
	JPEGQuality   int
	DescribePages bool // call the vision providers for image-method pages
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Addr         string
	MaxUploadMB  int
	WorkDir      string
	ResultTTL    time.Duration
	FetchTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Providers ProvidersConfig
	Analysis  AnalysisConfig
	Queue     QueueConfig
	Server    ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/ragprep.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_ragprep",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Providers = ProvidersConfig{
		PrimaryEngine:   getEnv("PRIMARY_ENGINE", "openai"),
		SecondaryEngine: getEnv("SECONDARY_ENGINE", "anthropic"),
		OpenAIModel:     getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
		AnthropicModel:  getEnv("ANTHROPIC_VISION_MODEL", "claude-3-5-sonnet-20241022"),
		RequestTimeout:  parseDuration(getEnv("REQUEST_TIMEOUT", "120s"), 120*time.Second),
		BreakerCooldown: parseDuration(getEnv("BREAKER_COOLDOWN", "60s"), 60*time.Second),
		SystemPrompt:    getEnv("VISION_SYSTEM_PROMPT", defaultSystemPrompt),
	}

	cfg.Analysis = AnalysisConfig{
		Parallel:      parseBool(getEnv("PARALLEL_PROCESSING", "true")),
		Workers:       parseInt(getEnv("ANALYSIS_WORKERS", "0"), 0),
		OutputDir:     getEnv("OUTPUT_DIR", "output"),
		DPIMultiplier: parseFloat(getEnv("DPI_MULTIPLIER", "2.0"), 2.0),
		JPEGQuality:   parseInt(getEnv("JPEG_QUALITY", "85"), 85),
		DescribePages: parseBool(getEnv("DESCRIBE_PAGES", "0")),
	}

	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:ragprep:docs"),
		Group:        getEnv("QUEUE_GROUP", "workers:analysis"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.Server = ServerConfig{
		Addr:         getEnv("LISTEN_ADDR", ":8080"),
		MaxUploadMB:  parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200),
		WorkDir:      getEnv("WORK_DIR", os.TempDir()),
		ResultTTL:    parseDuration(getEnv("RESULT_TTL", "24h"), 24*time.Hour),
		FetchTimeout: parseDuration(getEnv("FETCH_TIMEOUT", "60s"), 60*time.Second),
	}

	return cfg
}

const defaultSystemPrompt = "You describe pages of technical manuals for a retrieval index. " +
	"Transcribe tables faithfully as markdown. Describe flowcharts step by step in reading order. " +
	"For diagrams, list the labeled parts and how they connect. Answer in the language of the page."

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
