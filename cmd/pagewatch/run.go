package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagewatch/monitor"
	"github.com/hazyhaar/pagewatch/observability"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch every configured page until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	logger := e.logger

	metrics, err := observability.NewProvider(ctx, observability.MetricsConfig{
		Enabled:  e.cfg.Telemetry.Enabled,
		Endpoint: e.cfg.Telemetry.Endpoint,
		Insecure: e.cfg.Telemetry.Insecure,
		Interval: e.cfg.Telemetry.Interval,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(sctx); err != nil {
			logger.Warn("pagewatch: metrics shutdown", "error", err)
		}
	}()

	// Collaborators are handed to the supervisor, which closes them.
	backend, err := newBackend(e.cfg, logger)
	if err != nil {
		return err
	}
	store, err := newStore(e.cfg)
	if err != nil {
		backend.Close()
		return err
	}
	notifier, err := newNotifier(e.cfg, logger)
	if err != nil {
		backend.Close()
		store.Close()
		return err
	}

	sup, err := monitor.NewSupervisor(monitor.SupervisorConfig{
		Pages:          e.pages,
		Backend:        backend,
		Store:          store,
		Notifier:       notifier,
		ExtractTimeout: e.cfg.ExtractTimeout,
		NotifyTimeout:  e.cfg.NotifyTimeout,
		Logger:         logger,
		Meter:          metrics.Meter("github.com/hazyhaar/pagewatch"),
	})
	if err != nil {
		backend.Close()
		store.Close()
		notifier.Close()
		return err
	}

	logger.Info("pagewatch: started",
		"pages", len(e.pages), "backend", e.cfg.Backend, "store", e.cfg.Store)
	if err := sup.Run(ctx); err != nil {
		logger.Error("pagewatch: stopped with errors", "error", err)
		return err
	}
	logger.Info("pagewatch: stopped")
	return nil
}
