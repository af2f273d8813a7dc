package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the process configuration, read once at startup. Launched
// applications get their port from the launcher, not from this struct;
// EnvPort only carries the raw PORT value through to port resolution.
type Config struct {
	AppEnv     string
	ListenAddr string
	DataDir    string
	EnvPort    string
	LogLevel   string
	LogFormat  string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		ListenAddr: getEnv("LISTEN_ADDR", ":3000"),
		DataDir:    getEnv("SLIPWAY_DATA_DIR", "data"),
		EnvPort:    getEnv("PORT", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
	}

	if cfg.EnvPort != "" {
		if _, err := strconv.Atoi(cfg.EnvPort); err != nil {
			return nil, fmt.Errorf("PORT must be a numeric string, got %q", cfg.EnvPort)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
