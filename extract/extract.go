// Package extract is the boundary between pagewatch and whatever renders
// pages. A Backend hands out one Session per watcher; a Session turns
// (url, selector) into the raw markup of the watched fragment.
//
// Two backends ship with pagewatch: a full browser (Chrome driven through
// Rod) for pages rendered by JavaScript, and a plain HTTP fetcher for static
// pages. Watchers never know which one they use.
package extract

import (
	"context"

	"github.com/hazyhaar/pagewatch/extract/internal/selector"
)

// Backend creates extraction sessions.
type Backend interface {
	// Open acquires a session for the page identified by pageID. The caller
	// owns the session and must Close it.
	Open(ctx context.Context, pageID string) (Session, error)
	// Close releases backend-wide resources (e.g. the browser process).
	Close() error
}

// Session extracts content for one watcher. Sessions are not shared.
type Session interface {
	// Extract returns the raw markup matched by selector on url. The
	// deadline of ctx is the extraction timeout.
	Extract(ctx context.Context, url, selector string) (string, error)
	Close() error
}

// Sentinel errors wrapped by every backend.
var (
	ErrNotFound = selector.ErrNotFound
	ErrEmpty    = selector.ErrEmpty
)

// SelectorKind is the selector language.
type SelectorKind = selector.Kind

const (
	CSS   = selector.CSS
	XPath = selector.XPath
)

// ParseSelector returns the kind and bare expression of a selector.
// "xpath:" and "css:" prefixes force the kind; otherwise expressions starting
// with "/", "./" or "(" are XPath and everything else is CSS.
func ParseSelector(sel string) (SelectorKind, string) {
	return selector.Parse(sel)
}
