package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment can't leak in
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"HOST", "PORT", "LOG_LEVEL", "STORAGE_TYPE", "REDIS_URL", "DATABASE_URL",
		"INITIAL_BALANCE", "MAX_NAME_LENGTH", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, int64(1500), cfg.InitialBalance)
	assert.Equal(t, 100, cfg.MaxNameLength)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_TYPE", "SQLite")
	t.Setenv("INITIAL_BALANCE", "2000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, StorageSQLite, cfg.StorageType)
	assert.Equal(t, "gamebank.db", cfg.DatabaseURL)
	assert.Equal(t, int64(2000), cfg.InitialBalance)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides variables that are already set, even to ""
	require.NoError(t, os.Unsetenv("PORT"))
	require.NoError(t, os.Unsetenv("INITIAL_BALANCE"))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7000\nINITIAL_BALANCE=10\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PORT")
		_ = os.Unsetenv("INITIAL_BALANCE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, int64(10), cfg.InitialBalance)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown storage", "STORAGE_TYPE", "mongo"},
		{"bad level", "LOG_LEVEL", "loud"},
		{"negative balance", "INITIAL_BALANCE", "-5"},
		{"non-numeric balance", "INITIAL_BALANCE", "lots"},
		{"zero name length", "MAX_NAME_LENGTH", "0"},
		{"bad port", "PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestPostgresRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_TYPE", "postgres")

	_, err := Load(noEnvFile(t))
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/gamebank")
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/gamebank", cfg.DatabaseURL)
}
