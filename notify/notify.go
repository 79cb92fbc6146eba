// Package notify delivers change events to humans. Delivery failures are
// returned to the caller, which logs them; nothing here is persisted.
package notify

import (
	"context"
	"time"
)

// Event describes one observed change of a watched page.
type Event struct {
	ID         string    `json:"id"`
	Page       string    `json:"page"`
	URL        string    `json:"url"`
	Old        string    `json:"old"`
	New        string    `json:"new"`
	DetectedAt time.Time `json:"detected_at"`
}

// Notifier is the output interface. Implementations deliver events to
// different channels (Discord, generic webhook, stdout, in-process callback).
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}
