package notify

import (
	"context"
	"log/slog"
)

// Router fans events out to every notifier. One notifier's failure does not
// block the others; failures are logged and the first one is returned.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifiers: notifiers, logger: logger}
}

// Len returns the number of notifiers.
func (r *Router) Len() int { return len(r.notifiers) }

func (r *Router) Notify(ctx context.Context, ev Event) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			r.logger.Warn("notify: delivery failed", "page", ev.Page, "event", ev.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
