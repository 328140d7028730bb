// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultDatabasePath  = "./data/bus_scraper.db"
	defaultBaseURL       = "https://www.highwaybus.com/gp"
	defaultLogLevel      = "info"
	defaultPollInterval  = 300
	minPollIntervalSecs  = 5
)

// Config holds the application configuration.
type Config struct {
	DatabasePath       string
	BaseURL            string
	LogLevel           string
	EnableTracker      bool
	SeedFromEnv        bool
	SeedRoutesCatalog  bool
	DefaultPollSecs    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = defaultLogLevel
	}

	pollSecs := defaultPollInterval
	if raw := os.Getenv("DEFAULT_POLL_INTERVAL_SECS"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_POLL_INTERVAL_SECS %q: %w", raw, err)
		}
		pollSecs = v
	}
	if pollSecs < minPollIntervalSecs {
		pollSecs = minPollIntervalSecs
	}

	return &Config{
		DatabasePath:      dbPath,
		BaseURL:           baseURL,
		LogLevel:          logLevel,
		EnableTracker:     boolEnv("ENABLE_TRACKER", true),
		SeedFromEnv:       boolEnv("SEED_FROM_ENV", false),
		SeedRoutesCatalog: boolEnv("SEED_ROUTES_CATALOG", false),
		DefaultPollSecs:   pollSecs,
	}, nil
}

func boolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return raw == "true"
}
