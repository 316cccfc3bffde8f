package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pants721/mao/internal/db"
	"github.com/pants721/mao/internal/ratelimit"
	"github.com/pants721/mao/internal/redis"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	// Server configuration
	ServerPort     string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	SendBuffer     int

	// Lobby configuration
	LobbyCodeLength int
	EventBuffer     int

	// Inbound request limits per connection
	RateLimit ratelimit.Config

	// Optional history store; empty DB.Driver disables it
	DB db.Config

	// Optional lobby code reservation; empty Redis.Host disables it
	Redis redis.Config
}

// Load reads configuration from the environment, after loading a .env file if
// one exists.
func Load() (Config, error) {
	godotenv.Load()

	cfg := Config{
		ServerPort:      getEnv("SERVER_PORT", "3012"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		LobbyCodeLength: 5,
		SendBuffer:      256,
		EventBuffer:     100,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: 10,
			BurstSize:         20,
		},
		DB: db.Config{
			Driver:   getEnv("DB_DRIVER", ""),
			DSN:      getEnv("DB_DSN", "mao.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "mao"),
		},
		Redis: redis.Config{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
	}

	var err error
	if cfg.SendBuffer, err = getEnvInt("SEND_BUFFER", cfg.SendBuffer); err != nil {
		return Config{}, err
	}
	if cfg.EventBuffer, err = getEnvInt("EVENT_BUFFER", cfg.EventBuffer); err != nil {
		return Config{}, err
	}
	if cfg.LobbyCodeLength, err = getEnvInt("LOBBY_CODE_LENGTH", cfg.LobbyCodeLength); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.BurstSize, err = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize); err != nil {
		return Config{}, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RequestsPerSecond = rps
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.SendBuffer < 1 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer)
	}
	if c.LobbyCodeLength < 4 || c.LobbyCodeLength > 16 {
		return fmt.Errorf("LOBBY_CODE_LENGTH must be between 4 and 16, got %d", c.LobbyCodeLength)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}
	switch c.DB.Driver {
	case "", db.DriverSQLite, db.DriverMySQL:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
