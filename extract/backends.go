package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pagewatch/extract/internal/browser"
	"github.com/hazyhaar/pagewatch/extract/internal/httpfetch"
)

// Backend names accepted by New.
const (
	KindBrowser = "browser"
	KindHTTP    = "http"
)

// BrowserConfig controls the Chrome backend.
type BrowserConfig = browser.Config

// NewBrowser returns the full-browser backend.
func NewBrowser(cfg BrowserConfig) Backend {
	return browserBackend{m: browser.NewManager(cfg)}
}

// NewHTTP returns the lightweight HTTP backend.
func NewHTTP(userAgent string, logger *slog.Logger) Backend {
	opts := []httpfetch.Option{}
	if userAgent != "" {
		opts = append(opts, httpfetch.WithUserAgent(userAgent))
	}
	if logger != nil {
		opts = append(opts, httpfetch.WithLogger(logger))
	}
	return httpBackend{f: httpfetch.New(opts...)}
}

// New builds a backend by name. The browser config is ignored for KindHTTP
// except for its user agent and logger.
func New(kind string, cfg BrowserConfig) (Backend, error) {
	switch kind {
	case KindBrowser, "":
		return NewBrowser(cfg), nil
	case KindHTTP:
		return NewHTTP(cfg.UserAgent, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("extract: unknown backend %q", kind)
	}
}

type browserBackend struct{ m *browser.Manager }

func (b browserBackend) Open(ctx context.Context, pageID string) (Session, error) {
	tab, err := b.m.Open(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

func (b browserBackend) Close() error { return b.m.Close() }

type httpBackend struct{ f *httpfetch.Fetcher }

func (b httpBackend) Open(ctx context.Context, pageID string) (Session, error) {
	s, err := b.f.Open(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b httpBackend) Close() error { return b.f.Close() }
