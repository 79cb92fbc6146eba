package snapshot

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Its content does not survive a restart.
type Memory struct {
	mu    sync.Mutex
	pages map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{pages: make(map[string]string)}
}

func (m *Memory) Observe(_ context.Context, pageID, content string) (*Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.pages[pageID]
	ch, write := decide(pageID, prev, existed, content)
	if write {
		m.pages[pageID] = content
	}
	return ch, nil
}

func (m *Memory) Get(_ context.Context, pageID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pages[pageID]
	return v, ok, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.pages = make(map[string]string)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
