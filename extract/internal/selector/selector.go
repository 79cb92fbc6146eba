// Package selector classifies content selectors and holds the sentinel
// errors shared by every extraction backend.
package selector

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means the selector matched nothing before the deadline.
	ErrNotFound = errors.New("selector matched nothing")
	// ErrEmpty means the matched element has no content.
	ErrEmpty = errors.New("matched element is empty")
)

// Kind is the selector language.
type Kind int

const (
	CSS Kind = iota
	XPath
)

func (k Kind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Parse returns the kind and bare expression of sel. An explicit "xpath:" or
// "css:" prefix wins; otherwise expressions starting with "/", "./" or "("
// are XPath and everything else is CSS.
func Parse(sel string) (Kind, string) {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "xpath:"):
		return XPath, strings.TrimSpace(sel[len("xpath:"):])
	case strings.HasPrefix(sel, "css:"):
		return CSS, strings.TrimSpace(sel[len("css:"):])
	case strings.HasPrefix(sel, "/"), strings.HasPrefix(sel, "./"), strings.HasPrefix(sel, "("):
		return XPath, sel
	default:
		return CSS, sel
	}
}
