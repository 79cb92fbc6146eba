package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/extract"
	"github.com/hazyhaar/pagewatch/notify"
	"github.com/hazyhaar/pagewatch/observability"
	"github.com/hazyhaar/pagewatch/snapshot"
)

// env is everything loaded before a command does real work.
type env struct {
	cfg       *config.Config
	pages     []config.Page
	logger    *slog.Logger
	logCloser io.Closer
}

func (e *env) Close() error { return e.logCloser.Close() }

// loadEnv reads both configuration files and sets up logging. A missing
// process config is tolerated unless --config was given explicitly.
func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	pages, err := config.LoadPagesFile(pagesPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckPages(pages); err != nil {
		return nil, err
	}

	logger, closer, err := observability.NewLogger(observability.LoggerConfig{
		Level: cfg.LogLevel,
		Dir:   cfg.LogDir,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &env{cfg: cfg, pages: pages, logger: logger, logCloser: closer}, nil
}

func newBackend(cfg *config.Config, logger *slog.Logger) (extract.Backend, error) {
	return extract.New(cfg.Backend, extract.BrowserConfig{
		RemoteURL:        cfg.Browser.Remote,
		Bin:              cfg.DriverPath,
		Headful:          cfg.Browser.Headful,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		UserAgent:        cfg.Browser.UserAgent,
		MemoryLimit:      cfg.Browser.MemoryLimitMB << 20,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		Logger:           logger,
	})
}

func newStore(cfg *config.Config) (snapshot.Store, error) {
	return snapshot.Open(cfg.Store, cfg.DBPath)
}

// newNotifier fans out to every configured sink. Without any sink, changes
// are written to stdout.
func newNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	opts := []notify.WebhookOption{notify.WithWebhookLogger(logger)}

	var sinks []notify.Notifier
	for _, s := range cfg.NotifySinks() {
		switch s.Type {
		case "discord":
			sinks = append(sinks, notify.NewDiscord(s.URL, opts...))
		case "webhook":
			sinks = append(sinks, notify.NewWebhook(s.URL, opts...))
		case "stdout":
			sinks = append(sinks, notify.NewStdout(os.Stdout))
		default:
			return nil, fmt.Errorf("pagewatch: unknown sink type %q", s.Type)
		}
	}
	if len(sinks) == 0 {
		logger.Warn("pagewatch: no notification sink configured, writing changes to stdout")
		sinks = append(sinks, notify.NewStdout(os.Stdout))
	}
	return notify.NewRouter(logger, sinks...), nil
}
