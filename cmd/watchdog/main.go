package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/KevinKickass/PowerWatchdog/internal/config"
	"github.com/KevinKickass/PowerWatchdog/internal/hubclient"
	"github.com/KevinKickass/PowerWatchdog/internal/power"
	"github.com/KevinKickass/PowerWatchdog/internal/shutdown"
	"github.com/KevinKickass/PowerWatchdog/internal/watchdog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const nutTimeout = 10 * time.Second

// One scheduled invocation: resolve config, poll power status, advance the
// countdown, maybe halt the host. Exit 0 on a normal run (including a
// triggered shutdown), 1 on fatal errors.
func main() {
	configPath := flag.String("config", "/etc/powerwatchdog.conf", "path to the local config file")
	flag.Parse()

	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Config laden (lokal + optional Hub-Refresh)
	cfg, clientIP, err := watchdog.Resolve(ctx, *configPath, logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger = logger.With(
		zap.String("tag", cfg.LogTag),
		zap.String("run_id", uuid.NewString()))
	logger.Info("Config resolved",
		zap.String("status_source", cfg.StatusSource),
		zap.Int("shutdown_delay_minutes", cfg.ShutdownDelay))

	if err := shutdown.EnsurePrivileged(); err != nil {
		logger.Fatal("Insufficient privilege", zap.Error(err))
	}

	var (
		source   power.Source
		reporter watchdog.Reporter
	)
	if cfg.HubConfigured() {
		hub, err := hubclient.New(cfg.HubURL, cfg.HubToken)
		if err != nil {
			logger.Fatal("Failed to create hub client", zap.Error(err))
		}
		reporter = hub
		if cfg.StatusSource == config.SourceHub {
			source = hub
		}
	}
	if cfg.StatusSource == config.SourceNUT {
		source = power.NewNUTSource(cfg.NUTAddr, cfg.UPSName, nutTimeout)
	}
	if source == nil {
		logger.Fatal("STATUS_SOURCE=hub requires HUB_URL and HUB_TOKEN")
	}

	runner := watchdog.NewRunner(cfg, logger, source, shutdown.Halt, reporter, clientIP)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("Run failed", zap.Error(err))
	}
}
