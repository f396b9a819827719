// Package client downloads the installer from a FrameHub server the same
// way the landing page script does.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"framehub/internal/domain"
	"framehub/internal/observability"
)

var (
	// ErrDownloadFailed wraps every failed attempt.
	ErrDownloadFailed = errors.New("download failed")
	// ErrDownloadInProgress is returned when TriggerDownload is called while
	// another attempt is still running.
	ErrDownloadInProgress = errors.New("download already in progress")
)

// DefaultTimeout bounds a single attempt when no HTTPClient is supplied.
const DefaultTimeout = 5 * time.Minute

// Downloader fetches the installer and saves it under its fixed name. It is
// safe for concurrent use; at most one attempt runs at a time.
type Downloader struct {
	BaseURL    string
	Dir        string
	HTTPClient *http.Client
	Notifier   Notifier
	Logger     observability.Logger

	downloading atomic.Bool
}

// Downloading reports whether an attempt is in flight.
func (d *Downloader) Downloading() bool {
	return d.downloading.Load()
}

// TriggerDownload performs one attempt: request the installer, save it to
// Dir and emit the matching notification. The in-flight flag is cleared on
// every path. A call made while another is running returns
// ErrDownloadInProgress without a request or a notification.
func (d *Downloader) TriggerDownload(ctx context.Context) (string, error) {
	if !d.downloading.CompareAndSwap(false, true) {
		return "", ErrDownloadInProgress
	}
	defer d.downloading.Store(false)

	path, err := d.fetch(ctx)
	if err != nil {
		d.logger().ErrorContext(ctx, "download error", "error", err)
		d.notify(ctx, domain.DownloadFailed)
		return "", err
	}

	d.logger().InfoContext(ctx, "installer saved", "path", path)
	d.notify(ctx, domain.DownloadStarted)
	return path, nil
}

func (d *Downloader) fetch(ctx context.Context) (string, error) {
	url := strings.TrimRight(d.BaseURL, "/") + domain.DownloadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrDownloadFailed, err)
	}

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http request: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	path, err := d.save(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return path, nil
}

// save streams body into a temp file next to the destination and renames
// it into place, so a partial download never appears under the final name.
func (d *Downloader) save(body io.Reader) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, domain.InstallerFileName+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write installer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	dest := filepath.Join(dir, domain.InstallerFileName)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("move installer into place: %w", err)
	}
	return dest, nil
}

func (d *Downloader) notify(ctx context.Context, n domain.Notification) {
	if d.Notifier != nil {
		d.Notifier.Notify(ctx, n)
	}
}

func (d *Downloader) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (d *Downloader) logger() observability.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return observability.Discard()
}
