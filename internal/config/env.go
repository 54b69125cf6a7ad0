package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/omriShneor/alfred_scheduler/internal/gcal"
	"github.com/omriShneor/alfred_scheduler/internal/scheduler"
	"github.com/omriShneor/alfred_scheduler/internal/timeutil"
)

func init() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
}

type Config struct {
	// Required for the LLM stages
	AnthropicAPIKey string

	// Google Calendar
	GoogleCredentialsJSON string
	GoogleCredentialsPath string
	GoogleCalendarID      string

	// Scheduling
	Timezone               string
	DefaultDurationMinutes int
	ConflictPolicy         scheduler.FailurePolicy

	// Optional with defaults
	DBPath            string
	HTTPPort          int
	ClaudeModel       string
	ClaudeTemperature float64
	LogLevel          slog.Level

	// Booking notifications
	ResendAPIKey string
	EmailFrom    string
	NotifyEmail  string
}

func LoadFromEnv() *Config {
	cfg := &Config{
		// Required
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		GoogleCredentialsJSON: os.Getenv("GOOGLE_CALENDAR_CREDENTIALS"),
		GoogleCredentialsPath: getEnvOrDefault("GOOGLE_CALENDAR_CREDENTIALS_PATH", "./credentials/google_calendar_credentials.json"),
		GoogleCalendarID:      getEnvOrDefault("GOOGLE_CALENDAR_ID", "primary"),

		Timezone:               getEnvOrDefault("ALFRED_TIMEZONE", "Asia/Jerusalem"),
		DefaultDurationMinutes: getEnvAsIntOrDefault("ALFRED_DEFAULT_DURATION_MINUTES", scheduler.DefaultDurationMinutes),
		ConflictPolicy:         scheduler.ParseFailurePolicy(os.Getenv("ALFRED_CONFLICT_POLICY")),

		// Optional with defaults
		DBPath:            os.Getenv("ALFRED_DB_PATH"),
		HTTPPort:          getEnvAsIntOrDefault("ALFRED_HTTP_PORT", 5000),
		ClaudeModel:       getEnvOrDefault("ALFRED_CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		ClaudeTemperature: getEnvAsFloatOrDefault("ALFRED_CLAUDE_TEMPERATURE", 0.1),
		LogLevel:          parseLogLevel(os.Getenv("ALFRED_LOG_LEVEL")),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("ALFRED_EMAIL_FROM", "Alfred <alfred@resend.dev>"),
		NotifyEmail:  os.Getenv("ALFRED_NOTIFY_EMAIL"),
	}

	// PORT is set by most PaaS hosts
	cfg.HTTPPort = getEnvAsIntOrDefault("PORT", cfg.HTTPPort)

	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = scheduler.DefaultDurationMinutes
	}

	return cfg
}

// Location resolves the working timezone, falling back to UTC when the
// name is unknown. The second value reports whether the fallback was used.
func (c *Config) Location() (*time.Location, bool) {
	return timeutil.ResolveLocation(c.Timezone)
}

// CalendarConfig returns the client configuration for the working calendar.
func (c *Config) CalendarConfig(loc *time.Location) gcal.ClientConfig {
	return gcal.ClientConfig{
		CalendarID: c.GoogleCalendarID,
		Location:   loc,
		Credentials: gcal.CredentialsConfig{
			JSON: c.GoogleCredentialsJSON,
			Path: c.GoogleCredentialsPath,
		},
	}
}

// TracesEnabled reports whether request traces are persisted.
func (c *Config) TracesEnabled() bool {
	return c.DBPath != ""
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
