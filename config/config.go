package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Config holds the process settings read from the environment.
type Config struct {
	Env      string
	Backend  string
	DBPath   string
	LogLevel string
	Workers  int
}

// Load reads an optional .env file and returns the configuration from the
// environment. A missing .env file is not an error.
func Load() (*Config, error) {
	// Variables already set in the environment take precedence.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "production"),
		Backend:  getEnv("LEDGER_BACKEND", BackendMemory),
		DBPath:   getEnv("DB_PATH", "ledger.db"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		Workers:  getEnvInt("WORKERS", 4),
	}

	switch cfg.Backend {
	case BackendMemory, BackendBolt:
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
