// Command tracker runs the bus-seat availability tracker: it loads every
// active user route from the database and polls the booking site on each
// route's configured interval, sending webhook alerts on availability.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/config"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/seed"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/storage"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if cfg.SeedRoutesCatalog {
		log.Info("seeding route and station catalogue from the remote site")
		if err := seed.Catalogue(context.Background(), store, cfg.BaseURL, log); err != nil {
			log.Error("seed catalogue", "error", err)
		}
	}

	if cfg.SeedFromEnv {
		log.Info("seeding tracked routes from environment configuration")
		if err := seed.FromEnv(context.Background(), store); err != nil {
			log.Error("seed from env", "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.EnableTracker {
		log.Info("tracker disabled (ENABLE_TRACKER=false), exiting")
		return
	}

	sup, err := supervisor.New(store, cfg.BaseURL, log)
	if err != nil {
		log.Error("create supervisor", "error", err)
		os.Exit(1)
	}

	log.Info("starting tracker")
	if err := sup.Run(ctx); err != nil {
		log.Error("supervisor error", "error", err)
		os.Exit(1)
	}
	log.Info("tracker stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
