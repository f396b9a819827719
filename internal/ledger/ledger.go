// Package ledger records installer download attempts.
package ledger

import (
	"context"
	"time"
)

// Event is a single download attempt against the installer endpoint.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	StatusCode int       `json:"status_code"`
	Bytes      int64     `json:"bytes"`
}

// Succeeded reports whether the attempt delivered the installer.
func (e *Event) Succeeded() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// ListOptions provides filtering and pagination for List.
type ListOptions struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Stats aggregates the recorded attempts.
type Stats struct {
	Total        int64      `json:"total"`
	Succeeded    int64      `json:"succeeded"`
	Failed       int64      `json:"failed"`
	BytesServed  int64      `json:"bytes_served"`
	LastDownload *time.Time `json:"last_download,omitempty"`
}

// Ledger stores download events.
type Ledger interface {
	// Record stores an event, assigning ID and Timestamp when unset.
	Record(ctx context.Context, event *Event) error
	// List returns events newest first along with the total matching count.
	List(ctx context.Context, opts ListOptions) ([]*Event, int, error)
	// Stats aggregates every stored event.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
