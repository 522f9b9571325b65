package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           string
	AllowedOrigins []string

	DBDriver   string
	DBURL      string
	SQLitePath string

	AIProvider    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string

	GoogleClientID string

	RedisURL          string
	TokenCacheTTL     time.Duration
	WorkerConcurrency int

	LogLevel  string
	LogFormat string
}

func NewConfig() *Config {
	return &Config{
		Port:              "3000",
		AllowedOrigins:    []string{"http://localhost:5173"},
		DBDriver:          "postgres",
		SQLitePath:        "galaxy_ai.db",
		AIProvider:        "openai",
		OpenAIModel:       "gpt-3.5-turbo",
		GeminiModel:       "gemini-1.5-flash",
		TokenCacheTTL:     5 * time.Minute,
		WorkerConcurrency: 5,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load builds the configuration from the environment, reading a .env file first
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	cfg := NewConfig()
	setString(&cfg.Port, "PORT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}

	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	cfg.DBURL = os.Getenv("DB_URL")
	if cfg.DBURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DBURL = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			os.Getenv("DB_PORT"),
		)
	}

	setString(&cfg.AIProvider, "AI_PROVIDER")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	cfg.GeminiAPIKey = os.Getenv("GOOGLE_AI_STUDIO_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if v := os.Getenv("TOKEN_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_CACHE_TTL %q: %w", v, err)
		}
		cfg.TokenCacheTTL = ttl
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKER_CONCURRENCY %q", v)
		}
		cfg.WorkerConcurrency = n
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	return cfg, cfg.Validate()
}

// Validate checks that the settings required by the selected backends are present.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL or DB_HOST must be set for the postgres driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.AIProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set in the environment")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GOOGLE_AI_STUDIO_API_KEY is not set in the environment")
		}
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q", c.AIProvider)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
