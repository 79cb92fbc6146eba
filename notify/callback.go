package notify

import "context"

// Func is an in-process notifier.
type Func func(ctx context.Context, ev Event) error

// Callback delivers events via a Go function call, for embedding pagewatch
// in another program.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback notifier. fn may be nil.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Notify(ctx context.Context, ev Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
