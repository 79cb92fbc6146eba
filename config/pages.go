package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Page is one watched page. It is immutable for the life of the process.
type Page struct {
	ID       string   `yaml:"-"`
	URL      string   `yaml:"url"`
	Selector string   `yaml:"selector"`
	Interval Interval `yaml:"refresh_time"`
}

// Interval is a poll interval. In YAML it is either an integer number of
// seconds or a Go duration string ("90s", "5m").
type Interval time.Duration

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration { return time.Duration(i) }

func (i *Interval) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("refresh_time: expected a scalar at line %d", n.Line)
	}
	if n.Tag == "!!int" {
		secs, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("refresh_time: %w", err)
		}
		*i = Interval(time.Duration(secs) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("refresh_time %q at line %d: %w", n.Value, n.Line, err)
	}
	*i = Interval(d)
	return nil
}

// LoadPagesFile reads and validates a page list file.
func LoadPagesFile(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return ParsePages(data)
}

// ParsePages decodes a mapping of page name to page settings. Pages are
// returned sorted by name. Duplicate names are rejected by the decoder.
func ParsePages(data []byte) ([]Page, error) {
	var raw map[string]Page
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse pages: %w", err)
	}

	pages := make([]Page, 0, len(raw))
	for name, p := range raw {
		p.ID = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("config: no pages configured")
	}
	sort.Slice(pages, func(a, b int) bool { return pages[a].ID < pages[b].ID })
	return pages, nil
}

// Validate checks a single page entry.
func (p Page) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("config: page with empty name")
	}
	if p.URL == "" {
		return fmt.Errorf("config: page %q: url is required", p.ID)
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: page %q: invalid url %q", p.ID, p.URL)
	}
	if p.Selector == "" {
		return fmt.Errorf("config: page %q: selector is required", p.ID)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("config: page %q: refresh_time must be positive", p.ID)
	}
	return nil
}

// Find returns the page named id.
func Find(pages []Page, id string) (Page, bool) {
	for _, p := range pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}
