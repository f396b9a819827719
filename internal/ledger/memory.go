package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents bounds the in-memory ledger.
const DefaultMaxEvents = 10000

// MemoryLedger keeps events in a slice, newest first. Once full, the
// oldest events are dropped but still count towards Stats.
type MemoryLedger struct {
	mu        sync.RWMutex
	events    []*Event
	maxEvents int
	stats     Stats
}

// MemoryOption configures a MemoryLedger.
type MemoryOption func(*MemoryLedger)

// WithMaxEvents sets the maximum number of retained events.
func WithMaxEvents(max int) MemoryOption {
	return func(m *MemoryLedger) {
		if max > 0 {
			m.maxEvents = max
		}
	}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger(opts ...MemoryOption) *MemoryLedger {
	m := &MemoryLedger{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record stores a copy of event.
func (m *MemoryLedger) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	stored := *event
	m.events = append([]*Event{&stored}, m.events...)
	if len(m.events) > m.maxEvents {
		m.events = m.events[:m.maxEvents]
	}

	m.stats.Total++
	if stored.Succeeded() {
		m.stats.Succeeded++
		m.stats.BytesServed += stored.Bytes
		if m.stats.LastDownload == nil || stored.Timestamp.After(*m.stats.LastDownload) {
			ts := stored.Timestamp
			m.stats.LastDownload = &ts
		}
	} else {
		m.stats.Failed++
	}
	return nil
}

// List returns copies of the matching events.
func (m *MemoryLedger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*Event
	for _, e := range m.events {
		if opts.Since != nil && e.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.Timestamp.After(*opts.Until) {
			continue
		}
		filtered = append(filtered, e)
	}
	total := len(filtered)

	start := min(max(opts.Offset, 0), total)
	end := min(start+normalizeLimit(opts.Limit), total)

	out := make([]*Event, 0, end-start)
	for _, e := range filtered[start:end] {
		c := *e
		out = append(out, &c)
	}
	return out, total, nil
}

// Stats returns the running totals.
func (m *MemoryLedger) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	if s.LastDownload != nil {
		ts := *s.LastDownload
		s.LastDownload = &ts
	}
	return s, nil
}

// Close is a no-op.
func (m *MemoryLedger) Close() error { return nil }
