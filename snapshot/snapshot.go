// Package snapshot remembers the last canonical content seen for each watched
// page and decides whether a new observation is a change.
//
// A Store holds at most one value per page, never history. The first
// observation of a page is its baseline and is never reported as a change.
package snapshot

import (
	"context"
	"fmt"
)

// Change is returned by Observe when content differs from the stored value.
type Change struct {
	PageID string
	Old    string
	New    string
}

// Store is the snapshot persistence boundary. Implementations must be safe
// for concurrent Observe calls on different page IDs.
type Store interface {
	// Observe records content for pageID. It returns nil when this is the
	// first observation or the content is unchanged, and a Change (with the
	// stored value already replaced) otherwise.
	Observe(ctx context.Context, pageID, content string) (*Change, error)
	// Get returns the stored content for pageID, ok=false if never observed.
	Get(ctx context.Context, pageID string) (content string, ok bool, err error)
	// Clear removes every snapshot.
	Clear(ctx context.Context) error
	// Close releases the underlying persistence handle.
	Close() error
}

// Kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Open builds a Store of the given kind. path is ignored for KindMemory.
func Open(kind, path string) (Store, error) {
	switch kind {
	case KindSQLite, "":
		return OpenSQLite(path)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown store kind %q", kind)
	}
}

// decide applies the observe rule to a previous value.
func decide(pageID, prev string, existed bool, content string) (*Change, bool) {
	if !existed {
		return nil, true
	}
	if prev == content {
		return nil, false
	}
	return &Change{PageID: pageID, Old: prev, New: content}, true
}
