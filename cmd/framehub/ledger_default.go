//go:build !sqlite && !postgres

package main

import (
	"framehub/internal/config"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

// selectLedger returns the in-memory ledger when built without database tags.
func selectLedger(logger observability.Logger, cfg *config.Config) ledger.Ledger {
	if cfg.Ledger.DatabaseURL != "" {
		logger.Info("DATABASE_URL set, but binary not built with -tags postgres; using in-memory ledger")
	}
	logger.Info("using in-memory download ledger", "max_events", cfg.Ledger.MaxEvents)
	return ledger.NewMemoryLedger(ledger.WithMaxEvents(cfg.Ledger.MaxEvents))
}
