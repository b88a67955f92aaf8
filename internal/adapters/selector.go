package adapters

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector group used by extraction templates,
// e.g. "div.alert h3 a" or "h2, h3".
type Selector struct {
	group cascadia.SelectorGroup
}

// ParseSelector compiles expr. An empty expression yields a selector that
// matches nothing.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Selector{}, nil
	}
	group, err := cascadia.ParseGroup(expr)
	if err != nil {
		return Selector{}, fmt.Errorf("selector %q: %w", expr, err)
	}
	return Selector{group: group}, nil
}

// Empty reports whether the selector matches nothing
func (s Selector) Empty() bool {
	return len(s.group) == 0
}

// SelectAll returns every descendant of root matching the selector
func (s Selector) SelectAll(root *html.Node) []*html.Node {
	if s.Empty() {
		return nil
	}
	return cascadia.QueryAll(root, s.group)
}

// SelectFirst returns the first descendant of root matching the selector
func (s Selector) SelectFirst(root *html.Node) *html.Node {
	if s.Empty() {
		return nil
	}
	return cascadia.Query(root, s.group)
}
