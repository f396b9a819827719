// Command framehub-get downloads the installer from a running framehub
// server into a local directory.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framehub/internal/client"
	"framehub/internal/observability"
)

func main() {
	serverURL := flag.String("server", envOr("FRAMEHUB_SERVER_URL", "http://localhost:8080"), "base URL of the framehub server")
	dir := flag.String("dir", ".", "directory to save the installer in")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "request timeout")
	logFormat := flag.String("log-format", "json", "log format (json, text)")
	flag.Parse()

	logger := observability.NewLogger(observability.Config{
		Level:  "info",
		Format: *logFormat,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received signal, aborting download", "signal", sig)
		cancel()
	}()

	d := &client.Downloader{
		BaseURL:    *serverURL,
		Dir:        *dir,
		HTTPClient: &http.Client{Timeout: *timeout},
		Notifier:   client.LogNotifier{Logger: logger},
		Logger:     logger.WithComponent("downloader"),
	}

	start := time.Now()
	path, err := d.TriggerDownload(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
	logger.Info("download complete", "path", path, "elapsed", time.Since(start).String())
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
