// Package browser is the full-browser extraction backend. It runs one Chrome
// (headless by default) through Rod and gives every watcher its own stealth
// tab, so pages whose watched fragment is rendered by JavaScript can be
// observed.
//
// Chrome is launched on the first Open and recycled when it has run longer
// than RecycleInterval or a tab reports a JS heap above MemoryLimit. A
// recycled Chrome stays up until its last tab moves to the new one; tabs
// move at the start of their next extraction.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const closeTimeout = 5 * time.Second

// ErrClosed is returned by Open once the manager is closed.
var ErrClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome.
	RemoteURL string

	// Bin is the Chrome binary path. Empty = let the launcher find or
	// download one.
	Bin string

	// Headful shows the browser window. Default: headless.
	Headful bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// UserAgent overrides the tab user agent when set.
	UserAgent string

	// LaunchTries bounds launch/connect attempts. Default: 3.
	LaunchTries uint

	// MemoryLimit in bytes of a tab's JS heap. Recycle Chrome when
	// exceeded. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a launched Chrome.
	// A remote Chrome is never recycled for age or memory. Default: 4h.
	RecycleInterval time.Duration

	// HeapCheckInterval spaces JS heap samples across all tabs.
	// Default: 30s.
	HeapCheckInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LaunchTries == 0 {
		c.LaunchTries = 3
	}
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30 // 1GB
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.HeapCheckInterval <= 0 {
		c.HeapCheckInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// instance is one Chrome process (or remote connection) and the number of
// tabs still open on it.
type instance struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time

	// Guarded by Manager.mu.
	tabs   int
	heap   int64
	broken bool
	closed bool
}

// close ends the Chrome session. It does not depend on the manager's
// context, which is already cancelled during Close.
func (i *instance) close() {
	if i.browser != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		i.browser.Context(ctx).Close()
		cancel()
	}
	if i.lnch != nil {
		kill(i.lnch)
		i.lnch.Cleanup()
	}
}

// kill stops the launched process. It skips the launcher's settle delay
// when no process was started.
func kill(l *launcher.Launcher) {
	if l.PID() != 0 {
		l.Kill()
	}
}

// launchCall is an in-flight launch shared by every Open waiting for it.
type launchCall struct {
	done chan struct{}
	err  error
}

// Manager owns the Chrome processes.
type Manager struct {
	cfg Config

	// life bounds every launch and connection; Close cancels it.
	life   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cur       *instance
	retiring  map[*instance]struct{}
	launching *launchCall
	closed    bool

	lastHeapCheck atomic.Int64
}

// NewManager creates a browser Manager.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	life, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		life:     life,
		cancel:   cancel,
		retiring: make(map[*instance]struct{}),
	}
}

// Open returns a new tab for pageID, starting Chrome if needed. Waiting for
// Chrome is bounded by ctx; a launch abandoned by its caller keeps running
// for the next Open.
func (m *Manager) Open(ctx context.Context, pageID string) (*Tab, error) {
	inst, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	page, router, err := m.newPage(ctx, inst, pageID)
	if err != nil {
		m.markBroken(inst, pageID, err)
		m.release(inst)
		return nil, err
	}
	return &Tab{m: m, inst: inst, page: page, router: router, pageID: pageID, logger: m.cfg.Logger}, nil
}

// Close shuts every Chrome down and aborts a pending launch. It does not
// wait for tabs; their owners close them first.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()
	var insts []*instance
	if m.cur != nil {
		insts = append(insts, m.cur)
		m.cur = nil
	}
	for i := range m.retiring {
		insts = append(insts, i)
	}
	m.retiring = make(map[*instance]struct{})
	for _, i := range insts {
		i.closed = true
	}
	m.mu.Unlock()

	for _, i := range insts {
		i.close()
	}
	return nil
}

// acquire returns a live instance with its tab count already taken.
func (m *Manager) acquire(ctx context.Context) (*instance, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if inst := m.cur; inst != nil && !m.dueLocked(inst) {
			inst.tabs++
			m.mu.Unlock()
			return inst, nil
		}
		var stale *instance
		if m.cur != nil {
			stale = m.retireLocked(m.cur)
			m.cur = nil
		}
		call := m.launching
		if call == nil {
			call = &launchCall{done: make(chan struct{})}
			m.launching = call
			go m.runLaunch(call)
		}
		m.mu.Unlock()

		if stale != nil {
			go stale.close()
		}

		select {
		case <-call.done:
			if call.err != nil {
				return nil, call.err
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("browser: waiting for chrome: %w", ctx.Err())
		}
	}
}

func (m *Manager) runLaunch(call *launchCall) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	inst, err := backoff.Retry(m.life, m.launch,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(m.cfg.LaunchTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.cfg.Logger.Warn("browser: launch failed, retrying", "error", err, "retry_in", next)
		}))

	m.mu.Lock()
	m.launching = nil
	var orphan *instance
	switch {
	case err != nil:
		call.err = err
	case m.closed:
		orphan = inst
		call.err = ErrClosed
	default:
		m.cur = inst
	}
	m.mu.Unlock()
	close(call.done)

	if orphan != nil {
		orphan.close()
	}
}

func (m *Manager) launch() (*instance, error) {
	log := m.cfg.Logger
	inst := &instance{}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(m.life).Headless(!m.cfg.Headful)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			kill(l)
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		inst.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().Context(m.life).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		inst.close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	inst.browser = b
	inst.startAt = time.Now()
	return inst, nil
}

// dueLocked reports whether inst should stop receiving tabs.
func (m *Manager) dueLocked(inst *instance) bool {
	if inst.broken {
		return true
	}
	if inst.lnch == nil {
		return false
	}
	return time.Since(inst.startAt) >= m.cfg.RecycleInterval || inst.heap > m.cfg.MemoryLimit
}

// retireLocked takes inst out of service. It returns inst when no tab is
// left on it and the caller must close it.
func (m *Manager) retireLocked(inst *instance) *instance {
	m.cfg.Logger.Info("browser: recycling",
		"uptime", time.Since(inst.startAt), "heap", inst.heap, "broken", inst.broken, "tabs", inst.tabs)
	if inst.tabs <= 0 {
		inst.closed = true
		return inst
	}
	m.retiring[inst] = struct{}{}
	return nil
}

// release gives back one tab of inst and closes inst if it was retired and
// that was its last tab.
func (m *Manager) release(inst *instance) {
	m.mu.Lock()
	inst.tabs--
	var drop *instance
	if _, ok := m.retiring[inst]; ok && inst.tabs <= 0 && !inst.closed {
		delete(m.retiring, inst)
		inst.closed = true
		drop = inst
	}
	m.mu.Unlock()

	if drop != nil {
		m.cfg.Logger.Info("browser: recycled chrome released", "uptime", time.Since(drop.startAt))
		go drop.close()
	}
}

// stale reports whether a tab on inst should move to a fresh Chrome.
func (m *Manager) stale(inst *instance) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return inst != m.cur || m.dueLocked(inst)
}

func (m *Manager) markBroken(inst *instance, pageID string, err error) {
	m.cfg.Logger.Warn("browser: dropping chrome after tab failure", "page", pageID, "error", err)
	m.mu.Lock()
	inst.broken = true
	m.mu.Unlock()
}

// sampleHeap records the JS heap of page for inst, at most once per
// HeapCheckInterval across the manager.
func (m *Manager) sampleHeap(ctx context.Context, inst *instance, page *rod.Page) {
	now := time.Now().UnixNano()
	last := m.lastHeapCheck.Load()
	if now-last < int64(m.cfg.HeapCheckInterval) || !m.lastHeapCheck.CompareAndSwap(last, now) {
		return
	}

	used, err := jsHeapUsage(page.Context(ctx))
	if err != nil {
		m.cfg.Logger.Debug("browser: heap check failed", "error", err)
		return
	}

	m.mu.Lock()
	inst.heap = used
	m.mu.Unlock()
	if used > m.cfg.MemoryLimit {
		m.cfg.Logger.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
	}
}

func jsHeapUsage(page *rod.Page) (int64, error) {
	res, err := page.Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
