package main

import (
	"fmt"
	"log/slog"

	"familyboard/internal/config"
	"familyboard/internal/daemon"
	"familyboard/internal/metrics"
	"familyboard/internal/store"
)

// buildDaemon opens the store and wires every board component. The returned
// cleanup closes the store.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, func(), error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open board store: %w", err)
	}
	deps := daemon.BuildServices(cfg, st, metrics.New(), logger, nil)
	d, err := daemon.New(cfg, deps, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, func() { _ = st.Close() }, nil
}
