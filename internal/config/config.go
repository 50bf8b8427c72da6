package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	RunSchedule string // cron expression for the daily pipeline run
	TimeZone    string

	// Freshness window bounding which articles are eligible for
	// scoring and delivery in a run
	FreshnessWindow time.Duration

	// Database configuration
	DatabasePath string

	// Sources configuration (YAML file listing feeds and search queries)
	SourcesFile string

	// Relevance oracle / post writer (OpenAI-compatible API)
	LLMEndpoint     string
	LLMAPIKey       string
	ScoringModel    string
	PostWriterModel string
	Topic           string // the subject articles are scored against

	// Web search provider (SerpAPI-compatible)
	SearchAPIKey  string
	SearchTimeUTC string // "HH:MM"; the search leg runs at most once per day after this time

	// Telegram delivery
	TelegramBotToken  string
	TelegramChannel   string
	TelegramParseMode string

	// Optional email copy of each delivered digest
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Debug:       getBoolEnv("DEBUG", false),
		RunSchedule: getEnv("RUN_SCHEDULE", "0 0 9 * * *"),
		TimeZone:    getEnv("TIMEZONE", "UTC"),

		FreshnessWindow: getDurationEnv("FRESHNESS_WINDOW", 24*time.Hour),

		DatabasePath: getEnv("DATABASE_PATH", "digest.db"),
		SourcesFile:  getEnv("SOURCES_FILE", "config/sources.yaml"),

		LLMEndpoint:     getEnv("LLM_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		ScoringModel:    getEnv("SCORING_MODEL", "gpt-4o-mini"),
		PostWriterModel: getEnv("POST_WRITER_MODEL", "gpt-4o"),
		Topic:           getEnv("DIGEST_TOPIC", "AI agents and autonomous systems"),

		SearchAPIKey:  getEnv("SERPAPI_KEY", ""),
		SearchTimeUTC: getEnv("SEARCH_TIME_UTC", "08:00"),

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChannel:   getEnv("TELEGRAM_CHANNEL", ""),
		TelegramParseMode: getEnv("TELEGRAM_PARSE_MODE", "HTML"),

		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}

	if c.TelegramBotToken == "" || c.TelegramChannel == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHANNEL are required")
	}

	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}

	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("FRESHNESS_WINDOW must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if parts := strings.Split(c.SearchTimeUTC, ":"); len(parts) != 2 {
		return fmt.Errorf("SEARCH_TIME_UTC must be in HH:MM format")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
