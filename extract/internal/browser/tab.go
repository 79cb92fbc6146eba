package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pagewatch/extract/internal/selector"
)

// Tab is one watcher's rendering session: a stealth page reused across
// polls. It follows Chrome recycling by moving to the current Chrome at the
// start of an extraction.
type Tab struct {
	m      *Manager
	inst   *instance
	page   *rod.Page
	router *rod.HijackRouter
	pageID string
	logger *slog.Logger
}

// newPage creates a stealth page on inst. Setup calls are bounded by ctx;
// the returned page stays bound to the manager.
func (m *Manager) newPage(ctx context.Context, inst *instance, pageID string) (*rod.Page, *rod.HijackRouter, error) {
	page, err := stealth.Page(inst.browser.Context(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("browser: create tab: %w", err)
	}
	page = page.Context(m.life)

	if m.cfg.UserAgent != "" {
		ua := &proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}
		if err := page.Context(ctx).SetUserAgent(ua); err != nil {
			m.cfg.Logger.Warn("browser: set user agent failed", "page", pageID, "error", err)
		}
	}
	var router *rod.HijackRouter
	if len(m.cfg.ResourceBlocking) > 0 {
		router = applyResourceBlocking(page, m.cfg.ResourceBlocking)
	}
	return page, router, nil
}

// renew moves the tab to the current Chrome and releases the old one.
func (t *Tab) renew(ctx context.Context) error {
	inst, err := t.m.acquire(ctx)
	if err != nil {
		return err
	}
	page, router, err := t.m.newPage(ctx, inst, t.pageID)
	if err != nil {
		t.m.markBroken(inst, t.pageID, err)
		t.m.release(inst)
		return err
	}

	old := t.inst
	t.closePage()
	t.m.release(old)

	t.inst, t.page, t.router = inst, page, router
	t.logger.Debug("browser: tab moved to new chrome", "page", t.pageID)
	return nil
}

// Extract navigates to pageURL, waits for sel to appear and returns the
// element's innerHTML. The wait is bounded by ctx.
func (t *Tab) Extract(ctx context.Context, pageURL, sel string) (string, error) {
	if t.m.stale(t.inst) {
		if err := t.renew(ctx); err != nil {
			return "", err
		}
	}

	p := t.page.Context(ctx)

	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		t.logger.Warn("browser: wait load", "page", t.pageID, "url", pageURL, "error", err)
	}
	if t.logger.Enabled(ctx, slog.LevelDebug) {
		if src, err := p.HTML(); err == nil {
			t.logger.Debug("browser: page source", "page", t.pageID, "url", pageURL, "html", src)
		}
	}

	kind, expr := selector.Parse(sel)
	var el *rod.Element
	var err error
	if kind == selector.XPath {
		el, err = p.ElementX(expr)
	} else {
		el, err = p.Element(expr)
	}
	if err != nil {
		return "", fmt.Errorf("browser: %s: %w (%w)", sel, selector.ErrNotFound, err)
	}

	v, err := el.Property("innerHTML")
	if err != nil {
		return "", fmt.Errorf("browser: read innerHTML: %w", err)
	}
	t.m.sampleHeap(ctx, t.inst, t.page)

	inner := v.Str()
	if strings.TrimSpace(inner) == "" {
		return "", fmt.Errorf("browser: %s: %w", sel, selector.ErrEmpty)
	}
	return inner, nil
}

// Close stops request interception, closes the tab and gives its slot back
// to the manager.
func (t *Tab) Close() error {
	err := t.closePage()
	if t.inst != nil {
		t.m.release(t.inst)
		t.inst = nil
	}
	return err
}

func (t *Tab) closePage() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.page == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := t.page.Context(ctx).Close()
	t.page = nil
	return err
}
