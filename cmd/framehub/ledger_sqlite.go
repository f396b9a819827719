//go:build sqlite && !postgres

package main

import (
	"framehub/internal/config"
	"framehub/internal/ledger"
	"framehub/internal/observability"
)

// selectLedger returns a SQLite-backed ledger when built with the 'sqlite' tag.
// Configure with SQLITE_DSN or ledger.sqlite_dsn.
func selectLedger(logger observability.Logger, cfg *config.Config) ledger.Ledger {
	dsn := cfg.Ledger.SQLiteDSN
	l, err := ledger.NewSQLiteLedger(dsn)
	if err != nil {
		logger.Error("sqlite init failed; falling back to in-memory ledger", "error", err)
		return ledger.NewMemoryLedger(ledger.WithMaxEvents(cfg.Ledger.MaxEvents))
	}
	logger.Info("using sqlite download ledger", "dsn", dsn)
	return l
}
