package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", BackendMemory)
	t.Setenv("WORKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("LEDGER_BACKEND", BackendBolt)
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKERS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{Env: "development", Backend: BackendBolt, DBPath: "/tmp/x.db", LogLevel: "debug", Workers: 16}, cfg)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("WORKERS", "zero")
	assert.Equal(t, 4, getEnvInt("WORKERS", 4))
	t.Setenv("WORKERS", "-2")
	assert.Equal(t, 4, getEnvInt("WORKERS", 4))
	t.Setenv("WORKERS", "2")
	assert.Equal(t, 2, getEnvInt("WORKERS", 4))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("DB_PATH", "a.db")
	assert.Equal(t, "a.db", getEnv("DB_PATH", "ledger.db"))
	assert.Equal(t, "fallback", getEnv("PAYMENTS_ENGINE_UNSET_KEY", "fallback"))
}
