package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"framehub/internal/api"
	"framehub/internal/config"
	"framehub/internal/installer"
	"framehub/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional, env vars override)")
	addrFlag := flag.String("addr", "", "listen address (host:port), overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.NewLogger(observability.DefaultConfig()).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	logger := observability.NewLogger(observability.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	// Initialize Sentry if DSN is provided
	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			Release:          cfg.Metrics.Version,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", cfg.Sentry.Environment,
				"release", cfg.Metrics.Version,
			)
			sentryEnabled = true
		}
	}

	src, err := installer.NewSource(cfg.WorkDir, cfg.PublicDir)
	if err != nil {
		logger.Error("failed to resolve installer path", "error", err)
		os.Exit(1)
	}
	if _, err := src.Stat(context.Background()); err != nil {
		// Not fatal: the file may be dropped in after startup.
		logger.Warn("installer not found yet", "path", src.Path(), "error", err)
	} else {
		logger.Info("serving installer", "path", src.Path())
	}

	// Select the download ledger based on build tags (see ledger_*.go in this package).
	ledger := selectLedger(logger, cfg)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metricsCfg := observability.DefaultMetricsConfig()
		metricsCfg.Version = cfg.Metrics.Version
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled",
			"namespace", metricsCfg.Namespace,
			"version", metricsCfg.Version,
		)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	if !rateCfg.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	}

	var proxyConfig *api.TrustedProxyConfig
	if cfg.TrustedProxies != "" {
		proxyConfig, err = api.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Error("invalid trusted proxies", "error", err)
			proxyConfig = nil
		} else {
			logger.Info("trusted proxies configured", "count", len(proxyConfig.CIDRs))
		}
	}

	mux := http.NewServeMux()
	srv := api.NewServer(mux, src, ledger, logger, metrics)
	srv.SetTrustedProxies(proxyConfig)
	srv.RegisterRoutes()

	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting (innermost before handler)
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		observability.RateLimitMetricsMiddleware(metrics, rateCfg.Enabled()),
		api.RateLimitMiddleware(rateCfg, proxyConfig, logger.Slog()),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("framehub listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := ledger.Close(); err != nil {
		logger.Error("error closing download ledger", "error", err)
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}
