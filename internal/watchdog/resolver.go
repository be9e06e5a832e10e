package watchdog

import (
	"context"
	"strconv"

	"github.com/KevinKickass/PowerWatchdog/internal/config"
	"github.com/KevinKickass/PowerWatchdog/internal/hubclient"
	"go.uber.org/zap"
)

// Resolve produces the effective configuration for this run: local cached
// file first, then, when a hub is configured, a remote refresh whose values
// are persisted back into the file. Every remote failure falls back to the
// cached values; only a missing/unreadable local file is fatal, and that is
// left to the caller.
//
// The returned clientIP is this host's primary outbound address towards the
// hub, or "" when it could not be determined.
func Resolve(ctx context.Context, path string, logger *zap.Logger) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	if !cfg.HubConfigured() {
		return cfg, "", nil
	}

	clientIP, err := hubclient.OutboundIP(cfg.HubURL)
	if err != nil {
		logger.Warn("Failed to determine outbound IP", zap.Error(err))
	}

	hub, err := hubclient.New(cfg.HubURL, cfg.HubToken)
	if err != nil {
		logger.Warn("Failed to build hub client, using cached config", zap.Error(err))
		return cfg, clientIP, nil
	}

	remote, err := hub.FetchConfig(ctx, clientIP)
	if err != nil {
		logger.Warn("Hub config fetch failed, using cached config",
			zap.String("hub_url", cfg.HubURL),
			zap.Error(err))
		return cfg, clientIP, nil
	}

	updates := map[string]string{
		"SHUTDOWN_DELAY": strconv.Itoa(remote.ShutdownDelay),
	}
	cfg.ShutdownDelay = remote.ShutdownDelay
	if remote.UPSName != nil {
		cfg.UPSName = *remote.UPSName
		updates["UPS_NAME"] = *remote.UPSName
	}
	if remote.IgnoreSimulated != nil {
		cfg.IgnoreSimulated = *remote.IgnoreSimulated
		updates["IGNORE_SIMULATED"] = strconv.FormatBool(*remote.IgnoreSimulated)
	}

	if err := config.SaveOverrides(path, updates); err != nil {
		logger.Warn("Failed to persist hub config into local cache", zap.Error(err))
	} else {
		logger.Info("Hub config applied",
			zap.Int("shutdown_delay", cfg.ShutdownDelay))
	}

	return cfg, clientIP, nil
}
