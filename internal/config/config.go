// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage types accepted in STORAGE_TYPE
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds server settings
type Config struct {
	Host     string
	Port     int
	LogLevel slog.Level

	StorageType string
	RedisURL    string
	DatabaseURL string

	InitialBalance int64
	MaxNameLength  int

	CORSAllowedOrigins []string
}

// Load reads the optional env files (".env" when none are given) and then
// the environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		// A missing file is fine; settings then come from the environment
		_ = godotenv.Load(file)
	}

	cfg := &Config{
		Host:        getEnv("HOST", ""),
		StorageType: strings.ToLower(getEnv("STORAGE_TYPE", StorageMemory)),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	balance, err := strconv.ParseInt(getEnv("INITIAL_BALANCE", "1500"), 10, 64)
	if err != nil || balance < 0 {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE %q", os.Getenv("INITIAL_BALANCE"))
	}
	cfg.InitialBalance = balance

	maxName, err := strconv.Atoi(getEnv("MAX_NAME_LENGTH", "100"))
	if err != nil || maxName <= 0 {
		return nil, fmt.Errorf("invalid MAX_NAME_LENGTH %q", os.Getenv("MAX_NAME_LENGTH"))
	}
	cfg.MaxNameLength = maxName

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	switch cfg.StorageType {
	case StorageMemory, StorageRedis:
	case StorageSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "gamebank.db"
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_TYPE=%s", StoragePostgres)
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE %q", cfg.StorageType)
	}

	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogValue keeps connection strings out of the logs
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr()),
		slog.String("log_level", c.LogLevel.String()),
		slog.String("storage_type", c.StorageType),
		slog.Int64("initial_balance", c.InitialBalance),
		slog.Int("max_name_length", c.MaxNameLength),
		slog.Any("cors_allowed_origins", c.CORSAllowedOrigins),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
