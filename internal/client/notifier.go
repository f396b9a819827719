package client

import (
	"context"

	"framehub/internal/domain"
	"framehub/internal/observability"
)

// Notifier receives the user-facing outcome of a download attempt.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n domain.Notification) { f(ctx, n) }

// LogNotifier writes notifications through a Logger; destructive ones are
// logged at error level.
type LogNotifier struct {
	Logger observability.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(ctx context.Context, n domain.Notification) {
	logger := l.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	args := []any{"title", n.Title, "description", n.Description, "variant", n.Variant}
	if n.Variant == domain.VariantDestructive {
		logger.ErrorContext(ctx, n.Title, args...)
		return
	}
	logger.InfoContext(ctx, n.Title, args...)
}
