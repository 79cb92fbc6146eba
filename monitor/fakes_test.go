package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/pagewatch/config"
	"github.com/hazyhaar/pagewatch/extract"
	"github.com/hazyhaar/pagewatch/notify"
	"github.com/hazyhaar/pagewatch/snapshot"
)

// extractFunc answers the n-th (0-based) extraction of a page.
type extractFunc func(ctx context.Context, page string, n int) (string, error)

// scripted returns values in order and repeats the last one. Values are
// strings (content) or errors.
func scripted(values ...any) extractFunc {
	return func(_ context.Context, _ string, n int) (string, error) {
		if n >= len(values) {
			n = len(values) - 1
		}
		switch v := values[n].(type) {
		case error:
			return "", v
		case string:
			return v, nil
		default:
			panic("scripted: unsupported value")
		}
	}
}

type fakeBackend struct {
	fn       extractFunc
	openErrs atomic.Int32 // Open calls left to fail

	mu       sync.Mutex
	calls    map[string]int
	opened   int
	released int
	closed   bool
}

func newFakeBackend(fn extractFunc) *fakeBackend {
	return &fakeBackend{fn: fn, calls: make(map[string]int)}
}

func (b *fakeBackend) Open(_ context.Context, pageID string) (extract.Session, error) {
	if b.openErrs.Add(-1) >= 0 {
		return nil, errors.New("browser: launch failed")
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &fakeSession{b: b, page: pageID}, nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) counts() (opened, released int, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened, b.released, b.closed
}

type fakeSession struct {
	b    *fakeBackend
	page string
}

func (s *fakeSession) Extract(ctx context.Context, _, _ string) (string, error) {
	s.b.mu.Lock()
	n := s.b.calls[s.page]
	s.b.calls[s.page]++
	s.b.mu.Unlock()
	return s.b.fn(ctx, s.page, n)
}

func (s *fakeSession) Close() error {
	s.b.mu.Lock()
	s.b.released++
	s.b.mu.Unlock()
	return nil
}

// recordingStore wraps a Memory store, counts lifecycle calls and can be told
// to fail Observe for one page.
type recordingStore struct {
	*snapshot.Memory
	failPage string

	mu      sync.Mutex
	cleared bool
	closed  bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: snapshot.NewMemory()}
}

func (s *recordingStore) Observe(ctx context.Context, pageID, content string) (*snapshot.Change, error) {
	if pageID == s.failPage {
		return nil, errors.New("disk I/O error")
	}
	return s.Memory.Observe(ctx, pageID, content)
}

func (s *recordingStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cleared = true
	s.mu.Unlock()
	return s.Memory.Clear(ctx)
}

func (s *recordingStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Memory.Close()
}

type fakeNotifier struct {
	err error

	mu     sync.Mutex
	events []notify.Event
	closed bool
}

func (n *fakeNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return n.err
}

func (n *fakeNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) received() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func testPage(id string) config.Page {
	return config.Page{
		ID:       id,
		URL:      "https://shop.example/" + id,
		Selector: "#price",
		Interval: config.Interval(5 * time.Millisecond),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
