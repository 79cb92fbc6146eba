package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/extract"
	"github.com/hazyhaar/pagewatch/idgen"
	"github.com/hazyhaar/pagewatch/notify"
	"github.com/hazyhaar/pagewatch/snapshot"
)

// SupervisorConfig lists the pages to watch and the shared collaborators.
// The Supervisor takes ownership of Backend, Store and Notifier and closes
// them when Run returns.
type SupervisorConfig struct {
	Pages    []config.Page
	Backend  extract.Backend
	Store    snapshot.Store
	Notifier notify.Notifier

	ExtractTimeout time.Duration
	NotifyTimeout  time.Duration
	// ShutdownTimeout bounds clearing the store after watchers stop.
	// Default: 10s.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
	Meter  metric.Meter
	IDs    idgen.Generator
}

// Supervisor starts one Watcher per page and handles shutdown.
type Supervisor struct {
	cfg      SupervisorConfig
	log      *slog.Logger
	watchers []*Watcher
}

// NewSupervisor builds a Watcher for every page. Page names must be unique.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.Pages) == 0 {
		return nil, errors.New("monitor: no pages to watch")
	}

	s := &Supervisor{cfg: cfg, log: cfg.Logger}
	seen := make(map[string]bool, len(cfg.Pages))
	for _, p := range cfg.Pages {
		if seen[p.ID] {
			return nil, fmt.Errorf("monitor: duplicate page %q", p.ID)
		}
		seen[p.ID] = true

		w, err := NewWatcher(WatcherConfig{
			Page:           p,
			Backend:        cfg.Backend,
			Store:          cfg.Store,
			Notifier:       cfg.Notifier,
			ExtractTimeout: cfg.ExtractTimeout,
			NotifyTimeout:  cfg.NotifyTimeout,
			Logger:         cfg.Logger,
			Meter:          cfg.Meter,
			IDs:            cfg.IDs,
		})
		if err != nil {
			return nil, err
		}
		s.watchers = append(s.watchers, w)
	}
	return s, nil
}

// Watchers returns the watchers in page order.
func (s *Supervisor) Watchers() []*Watcher { return s.watchers }

// Stats returns every watcher's counters keyed by page name.
func (s *Supervisor) Stats() map[string]Stats {
	out := make(map[string]Stats, len(s.watchers))
	for _, w := range s.watchers {
		out[w.Page()] = w.Stats()
	}
	return out
}

// Run blocks until every watcher has stopped, normally because ctx was
// cancelled. It then closes the backend, clears and closes the store and
// closes the notifier. The result joins watcher failures and teardown errors.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("supervisor: starting", "pages", len(s.watchers))

	errs := make([]error, len(s.watchers))
	var wg conc.WaitGroup
	for i, w := range s.watchers {
		wg.Go(func() {
			errs[i] = w.Run(ctx)
		})
	}
	wg.Wait()
	s.log.Info("supervisor: watchers stopped")

	return errors.Join(append(errs, s.shutdown())...)
}

func (s *Supervisor) shutdown() error {
	var errs []error
	if err := s.cfg.Backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: close backend: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.cfg.Store.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("monitor: clear store: %w", err))
	}
	if err := s.cfg.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: close store: %w", err))
	}
	if err := s.cfg.Notifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: close notifier: %w", err))
	}

	if len(errs) > 0 {
		s.log.Error("supervisor: shutdown incomplete", "error", errors.Join(errs...))
	} else {
		s.log.Info("supervisor: shutdown complete")
	}
	return errors.Join(errs...)
}
