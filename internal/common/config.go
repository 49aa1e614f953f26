package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/extract-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	API    APIConfig
	Intake IntakeConfig
	Poll   PollConfig
	Watch  WatchConfig
	Ledger LedgerConfig
	Notify NotifyConfig
	Server ServerConfig
	Log    LogConfig
}

// APIConfig holds settings for the extraction service client
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// IntakeConfig holds client-side file validation settings
type IntakeConfig struct {
	AcceptedTypes []string
	MaxUploadMB   float64
	ProgressTick  time.Duration
}

// PollConfig holds job polling settings
type PollConfig struct {
	Interval time.Duration
}

// WatchConfig holds drop-folder settings for the daemon
type WatchConfig struct {
	Dirs      []string
	Debounce  time.Duration
	Workers   int
	QueueSize int
	ExportDir string
}

// LedgerConfig holds the submission ledger location
type LedgerConfig struct {
	Path string
}

// NotifyConfig holds optional AMQP notification settings
type NotifyConfig struct {
	AMQPURL      string
	AMQPExchange string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from a .env file (when present) and environment variables.
// Variables already set in the environment win over the file.
func LoadConfig() *Config {
	// .env is optional
	_ = godotenv.Load()
	return &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("EXTRACTOR_API_URL", "http://localhost:8000/api/v1"), "/"),
			Timeout: getEnvAsDuration("EXTRACTOR_HTTP_TIMEOUT", 60*time.Second),
		},
		Intake: IntakeConfig{
			AcceptedTypes: getEnvAsList("EXTRACTOR_ACCEPTED_TYPES", constants.DefaultAcceptedTypes),
			MaxUploadMB:   getEnvAsFloat64("EXTRACTOR_MAX_UPLOAD_MB", constants.DefaultMaxUploadMB),
			ProgressTick:  getEnvAsDuration("EXTRACTOR_PROGRESS_TICK", 200*time.Millisecond),
		},
		Poll: PollConfig{
			Interval: getEnvAsDuration("EXTRACTOR_POLL_INTERVAL", 3*time.Second),
		},
		Watch: WatchConfig{
			Dirs:      getEnvAsList("EXTRACTOR_WATCH_DIRS", nil),
			Debounce:  getEnvAsDuration("EXTRACTOR_WATCH_DEBOUNCE", 500*time.Millisecond),
			Workers:   getEnvAsInt("EXTRACTOR_WORKERS", 4),
			QueueSize: getEnvAsInt("EXTRACTOR_QUEUE_SIZE", 256),
			ExportDir: getEnv("EXTRACTOR_EXPORT_DIR", ""),
		},
		Ledger: LedgerConfig{
			Path: getEnv("EXTRACTOR_LEDGER_PATH", "./tmp/submissions.db"),
		},
		Notify: NotifyConfig{
			AMQPURL:      getEnv("AMQP_URL", ""),
			AMQPExchange: getEnv("AMQP_EXCHANGE", "extract-tracker.notifications"),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("EXTRACTOR_API_URL", c.API.BaseURL, Required, AbsoluteURL).
		Field("EXTRACTOR_ACCEPTED_TYPES", c.Intake.AcceptedTypes, NonEmptyList).
		Field("EXTRACTOR_MAX_UPLOAD_MB", c.Intake.MaxUploadMB, Positive).
		Field("EXTRACTOR_PROGRESS_TICK", c.Intake.ProgressTick, Positive).
		Field("EXTRACTOR_POLL_INTERVAL", c.Poll.Interval, Positive).
		Field("EXTRACTOR_HTTP_TIMEOUT", c.API.Timeout, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateDaemon adds the checks only the watch daemon needs.
func (c *Config) ValidateDaemon() error {
	if err := c.Validate(); err != nil {
		return err
	}
	v := NewValidator().
		Field("EXTRACTOR_WATCH_DIRS", c.Watch.Dirs, NonEmptyList).
		Field("EXTRACTOR_WORKERS", c.Watch.Workers, Positive).
		Field("EXTRACTOR_LEDGER_PATH", c.Ledger.Path, Required).
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
