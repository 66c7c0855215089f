package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Gemini  GeminiConfig
	Ledger  LedgerConfig
	Poll    PollConfig
	Session SessionConfig
	Events  EventsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	EventLogFilePath   string
	CorsAllowedOrigins string
	UploadDir          string
	BodyLimitBytes     int
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	ServerHost         string
	Version            string
}

type GeminiConfig struct {
	APIKey    string
	Model     string
	StoreName string
	BaseURL   string
}

type LedgerConfig struct {
	Path string // JSON file used when DSN is empty
	DSN  string // "postgres://..." selects the gorm backend
}

type PollConfig struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	MaxAttempts int // 0 means poll until done
}

type SessionConfig struct {
	Backend       string // "memory" | "redis"
	MaxPairs      int
	Timeout       time.Duration
	SweepInterval time.Duration
}

type EventsConfig struct {
	DocumentTopic string
}

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not defined")

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			EventLogFilePath:   getEnv("EVENT_LOG_FILE_PATH", "logs/document_events.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
			BodyLimitBytes:     getEnvAsInt("BODY_LIMIT_BYTES", 10*1024*1024),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			ServerHost:         getEnv("SERVER_HOST", "unknown"),
			Version:            getEnv("APP_VERSION", "1.0.0"),
		},
		Gemini: GeminiConfig{
			APIKey:    getEnv("GEMINI_API_KEY", ""),
			Model:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			StoreName: getEnv("STORE_NAME", "gemini-rag-store"),
			BaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		},
		Ledger: LedgerConfig{
			Path: getEnv("LEDGER_PATH", "data/documents.json"),
			DSN:  getEnv("LEDGER_DSN", ""),
		},
		Poll: PollConfig{
			Interval:    getEnvAsDuration("POLL_INTERVAL", time.Second),
			Multiplier:  getEnvAsFloat("POLL_MULTIPLIER", 1),
			MaxInterval: getEnvAsDuration("POLL_MAX_INTERVAL", 30*time.Second),
			MaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 0),
		},
		Session: SessionConfig{
			Backend:       getEnv("SESSION_BACKEND", "memory"),
			MaxPairs:      getEnvAsInt("SESSION_MAX_PAIRS", 5),
			Timeout:       getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		},
		Events: EventsConfig{
			DocumentTopic: getEnv("DOCUMENT_EVENTS_TOPIC", "DOCUMENT_EVENTS"),
		},
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "30m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
