package adapters

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
	"golang.org/x/net/html"
)

// Adapter defines the interface for provider-specific fetchers
type Adapter interface {
	// Name returns the source token used for selection (e.g. "nws")
	Name() string

	// DisplayName returns the human-readable provider name
	DisplayName() string

	// Kind returns the record kind this adapter produces
	Kind() model.RecordKind

	// Timeout returns the hard per-call network budget
	Timeout() time.Duration

	// Fetch retrieves raw records relevant to the request
	Fetch(ctx context.Context, req Request) ([]model.RawRecord, error)
}

// Request is what the orchestrator hands to every adapter.
type Request struct {
	Context    model.DisasterContext
	TimeWindow time.Duration

	// Now is the reference time of the aggregation; window bounds sent to
	// providers are computed from it. Zero means the wall clock.
	Now time.Time

	// Coordinates is set when the location name could be geocoded.
	Coordinates *model.Point

	// Keywords are the configured disaster keywords, used to build queries.
	Keywords []string
}

// WindowStart returns Now minus the time window, or minus fallback when the
// request has no window.
func (r Request) WindowStart(fallback time.Duration) time.Time {
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := r.TimeWindow
	if window <= 0 {
		window = fallback
	}
	return now.Add(-window).UTC()
}

// Registry maps source tokens to adapters
type Registry struct {
	adapters map[string]Adapter
	generic  map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		generic:  make(map[string]Adapter),
	}
}

// Register registers a bespoke adapter under its name
func (r *Registry) Register(adapter Adapter) {
	r.adapters[strings.ToLower(adapter.Name())] = adapter
}

// RegisterGeneric registers a template-driven adapter. Bespoke adapters with
// the same token take precedence.
func (r *Registry) RegisterGeneric(adapter Adapter) {
	r.generic[strings.ToLower(adapter.Name())] = adapter
}

// Lookup finds the adapter for a source token. Bespoke adapters are tried
// first, then generic ones.
func (r *Registry) Lookup(token string) (Adapter, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if adapter, ok := r.adapters[token]; ok {
		return adapter, nil
	}
	if adapter, ok := r.generic[token]; ok {
		return adapter, nil
	}
	return nil, NotConfigured(token)
}

// Resolve looks up every token. Unknown tokens are reported in errs and left
// out of the returned adapters; duplicates are collapsed.
func (r *Registry) Resolve(tokens []string) (resolved []Adapter, errs []error) {
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		adapter, err := r.Lookup(token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resolved = append(resolved, adapter)
	}
	return resolved, errs
}

// Names returns every registered token, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters)+len(r.generic))
	for name := range r.adapters {
		names = append(names, name)
	}
	for name := range r.generic {
		if _, shadowed := r.adapters[name]; !shadowed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BaseAdapter provides common HTML functionality for scraping adapters
type BaseAdapter struct{}

// ParseHTML parses HTML string into a node tree
func (b *BaseAdapter) ParseHTML(htmlContent string) (*html.Node, error) {
	return html.Parse(strings.NewReader(htmlContent))
}

// ExtractText extracts text content from a node
func (b *BaseAdapter) ExtractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := b.ExtractText(c); t != "" {
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(t)
		}
	}
	return strings.TrimSpace(buf.String())
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}
