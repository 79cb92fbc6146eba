// Package monitor runs the watch loops: one Watcher per page, all started
// and torn down by a Supervisor.
//
// A Watcher iteration is extract → normalize → observe → notify-on-change,
// followed by an unconditional sleep. Extraction and notification failures
// are contained to the iteration; only a snapshot store failure stops the
// Watcher, since losing the last-seen value would produce spurious repeat
// notifications.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/extract"
	"github.com/hazyhaar/pagewatch/idgen"
	"github.com/hazyhaar/pagewatch/normalize"
	"github.com/hazyhaar/pagewatch/notify"
	"github.com/hazyhaar/pagewatch/snapshot"
)

// WatcherConfig wires a Watcher to its collaborators.
type WatcherConfig struct {
	Page     config.Page
	Backend  extract.Backend
	Store    snapshot.Store
	Notifier notify.Notifier

	// ExtractTimeout bounds session acquisition plus one extraction.
	// Default: 10s.
	ExtractTimeout time.Duration
	// NotifyTimeout bounds one delivery, retries included. Default: 30s.
	NotifyTimeout time.Duration

	Logger *slog.Logger
	Meter  metric.Meter
	// IDs generates change event IDs. Default: idgen.Default.
	IDs idgen.Generator
	Now func() time.Time
}

func (c *WatcherConfig) defaults() {
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 10 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IDs == nil {
		c.IDs = idgen.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *WatcherConfig) validate() error {
	if err := c.Page.Validate(); err != nil {
		return err
	}
	switch {
	case c.Backend == nil:
		return errors.New("monitor: watcher needs an extraction backend")
	case c.Store == nil:
		return errors.New("monitor: watcher needs a snapshot store")
	case c.Notifier == nil:
		return errors.New("monitor: watcher needs a notifier")
	}
	return nil
}

// Watcher polls one page. Run must be called at most once.
type Watcher struct {
	cfg   WatcherConfig
	log   *slog.Logger
	inst  *instruments
	attrs metric.MeasurementOption

	// session is owned by the Run goroutine.
	session extract.Session

	polls          atomic.Int64
	failures       atomic.Int64
	changes        atomic.Int64
	notifyFailures atomic.Int64
	lastPoll       atomic.Int64
	lastChange     atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Polls          int64     `json:"polls"`
	Failures       int64     `json:"failures"`
	Changes        int64     `json:"changes"`
	NotifyFailures int64     `json:"notify_failures"`
	LastPoll       time.Time `json:"last_poll"`
	LastChange     time.Time `json:"last_change"`
}

// NewWatcher validates cfg and builds a Watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:   cfg,
		log:   cfg.Logger.With("page", cfg.Page.ID),
		inst:  newInstruments(cfg.Meter),
		attrs: metric.WithAttributes(AttrPage.String(cfg.Page.ID)),
	}, nil
}

// Page returns the watched page name.
func (w *Watcher) Page() string { return w.cfg.Page.ID }

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Polls:          w.polls.Load(),
		Failures:       w.failures.Load(),
		Changes:        w.changes.Load(),
		NotifyFailures: w.notifyFailures.Load(),
		LastPoll:       unixNano(w.lastPoll.Load()),
		LastChange:     unixNano(w.lastChange.Load()),
	}
}

// Run polls until ctx is cancelled. Cancellation is checked between
// iterations; an in-flight iteration always completes. Run returns nil on
// cancellation and an error only when the snapshot store fails. The
// extraction session is closed before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.closeSession()

	interval := w.cfg.Page.Interval.Duration()
	w.log.Info("watcher: started", "url", w.cfg.Page.URL, "interval", interval)

	timer := time.NewTimer(interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			w.log.Info("watcher: stopped")
			return nil
		}
		if err := w.poll(ctx); err != nil {
			w.log.Error("watcher: store failure, stopping", "error", err)
			return err
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			w.log.Info("watcher: stopped")
			return nil
		case <-timer.C:
		}
	}
}

// poll runs one iteration detached from ctx cancellation. The returned error
// is always a store failure.
func (w *Watcher) poll(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	w.polls.Add(1)
	w.lastPoll.Store(w.cfg.Now().UnixNano())
	w.inst.polls.Add(ctx, 1, w.attrs)

	raw, err := w.extract(ctx)
	if err != nil {
		w.fail(ctx, err)
		return nil
	}
	content := normalize.Normalize(raw)
	if content == "" {
		w.fail(ctx, extract.ErrEmpty)
		return nil
	}
	w.log.Debug("watcher: observed", "content", content)

	change, err := w.cfg.Store.Observe(ctx, w.cfg.Page.ID, content)
	if err != nil {
		return fmt.Errorf("monitor: %s: observe: %w", w.cfg.Page.ID, err)
	}
	if change == nil {
		return nil
	}

	w.changes.Add(1)
	w.lastChange.Store(w.cfg.Now().UnixNano())
	w.inst.changes.Add(ctx, 1, w.attrs)
	w.log.Info("watcher: change detected", "old", change.Old, "new", change.New)
	w.notify(ctx, change)
	return nil
}

func (w *Watcher) extract(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.ExtractTimeout)
	defer cancel()

	if w.session == nil {
		s, err := w.cfg.Backend.Open(ctx, w.cfg.Page.ID)
		if err != nil {
			return "", fmt.Errorf("open session: %w", err)
		}
		w.session = s
	}

	start := time.Now()
	raw, err := w.session.Extract(ctx, w.cfg.Page.URL, w.cfg.Page.Selector)
	w.inst.extractTime.Record(ctx, float64(time.Since(start).Microseconds())/1000, w.attrs)
	if err != nil {
		// A selector miss leaves the session usable. Anything else (navigation,
		// timeout, dead browser) gets a fresh session next iteration.
		if !errors.Is(err, extract.ErrNotFound) && !errors.Is(err, extract.ErrEmpty) {
			w.closeSession()
		}
		return "", err
	}
	return raw, nil
}

func (w *Watcher) fail(ctx context.Context, err error) {
	w.failures.Add(1)
	w.inst.failures.Add(ctx, 1, w.attrs)
	w.log.Warn("watcher: extraction failed", "error", err)
}

func (w *Watcher) notify(ctx context.Context, change *snapshot.Change) {
	ev := notify.Event{
		ID:         w.cfg.IDs(),
		Page:       w.cfg.Page.ID,
		URL:        w.cfg.Page.URL,
		Old:        change.Old,
		New:        change.New,
		DetectedAt: w.cfg.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.NotifyTimeout)
	defer cancel()
	if err := w.cfg.Notifier.Notify(ctx, ev); err != nil {
		w.notifyFailures.Add(1)
		w.inst.notifyFailures.Add(ctx, 1, w.attrs)
		w.log.Warn("watcher: notify failed", "event", ev.ID, "error", err)
	}
}

func (w *Watcher) closeSession() {
	if w.session == nil {
		return
	}
	if err := w.session.Close(); err != nil {
		w.log.Warn("watcher: close session", "error", err)
	}
	w.session = nil
}

func unixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
