// Package httpfetch is the lightweight extraction backend: a single HTTP GET,
// no browser and no JavaScript. It suits static pages whose watched fragment
// is present in the served HTML.
package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewatch/extract/internal/selector"
)

// Fetcher performs HTTP GETs and selects the watched fragment.
type Fetcher struct {
	client *resty.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.client.SetHeader("User-Agent", ua) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with browser-like default headers.
func New(opts ...Option) *Fetcher {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeaders(map[string]string{
			"User-Agent":      "Mozilla/5.0 (compatible; pagewatch/1.0)",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		})
	f := &Fetcher{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Open returns a session for one watcher. Sessions share the HTTP client,
// which is safe for concurrent use.
func (f *Fetcher) Open(_ context.Context, pageID string) (*Session, error) {
	return &Session{f: f, pageID: pageID}, nil
}

// Close is a no-op; the fetcher holds no process resources.
func (f *Fetcher) Close() error { return nil }

// Session is the per-watcher handle.
type Session struct {
	f      *Fetcher
	pageID string
}

// Extract GETs pageURL and returns the inner HTML of the first element
// matching sel. ctx bounds the whole request.
func (s *Session) Extract(ctx context.Context, pageURL, sel string) (string, error) {
	resp, err := s.f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("httpfetch: get %s: %w", pageURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("httpfetch: get %s: status %d", pageURL, resp.StatusCode())
	}

	body := resp.Body()
	s.f.logger.Debug("httpfetch: fetched",
		"page", s.pageID, "url", pageURL, "status", resp.StatusCode(),
		"size", len(body), "html", string(body))

	return Select(body, sel)
}

// Close is a no-op.
func (s *Session) Close() error { return nil }

// Select parses body and returns the inner HTML of the first match of sel.
func Select(body []byte, sel string) (string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("httpfetch: parse HTML: %w", err)
	}

	kind, expr := selector.Parse(sel)
	var inner string
	switch kind {
	case selector.XPath:
		node, err := htmlquery.Query(root, expr)
		if err != nil {
			return "", fmt.Errorf("httpfetch: xpath %q: %w", expr, err)
		}
		if node == nil {
			return "", fmt.Errorf("httpfetch: %s: %w", sel, selector.ErrNotFound)
		}
		if node.Type == html.TextNode {
			inner = node.Data
		} else {
			inner = htmlquery.OutputHTML(node, false)
		}
	default:
		match := goquery.NewDocumentFromNode(root).Find(expr).First()
		if match.Length() == 0 {
			return "", fmt.Errorf("httpfetch: %s: %w", sel, selector.ErrNotFound)
		}
		inner, err = match.Html()
		if err != nil {
			return "", fmt.Errorf("httpfetch: render %s: %w", sel, err)
		}
	}

	if strings.TrimSpace(inner) == "" {
		return "", fmt.Errorf("httpfetch: %s: %w", sel, selector.ErrEmpty)
	}
	return inner, nil
}
