package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/util"
)

// GenericAdapter scrapes any page with a configurable extraction template.
// It is the fallback for sources without bespoke logic, so extraction is
// best-effort: items without a title are skipped rather than failing the page.
type GenericAdapter struct {
	BaseAdapter
	id       string
	name     string
	pageURL  string
	template compiledTemplate
	fetcher  *Fetcher
	robots   *util.RobotsChecker
	timeout  time.Duration

	// templateErr is set when a configured selector does not compile
	templateErr error
}

type compiledTemplate struct {
	container Selector
	title     Selector
	link      Selector
	date      Selector
	summary   Selector
}

// defaultTemplate is used when a configured source omits selectors.
var defaultTemplate = model.ScrapeTemplate{
	Container: "article",
	Title:     "h2",
	Link:      "a",
	Date:      "time",
	Summary:   "p",
}

func compileTemplate(t model.ScrapeTemplate) (compiledTemplate, error) {
	var errs []error
	pick := func(v, def string) Selector {
		if strings.TrimSpace(v) == "" {
			v = def
		}
		sel, err := ParseSelector(v)
		if err != nil {
			errs = append(errs, err)
		}
		return sel
	}
	ct := compiledTemplate{
		container: pick(t.Container, defaultTemplate.Container),
		title:     pick(t.Title, defaultTemplate.Title),
		link:      pick(t.Link, defaultTemplate.Link),
		date:      pick(t.Date, defaultTemplate.Date),
		summary:   pick(t.Summary, defaultTemplate.Summary),
	}
	return ct, errors.Join(errs...)
}

// NewGenericAdapter creates a template-driven scraping adapter
func NewGenericAdapter(src model.ScrapeSource, fetcher *Fetcher, robots *util.RobotsChecker, timeout time.Duration) *GenericAdapter {
	name := src.Name
	if name == "" {
		name = src.ID
	}
	template, err := compileTemplate(src.Template)
	return &GenericAdapter{
		id:          strings.ToLower(src.ID),
		name:        name,
		pageURL:     src.URL,
		template:    template,
		templateErr: err,
		fetcher:     fetcher,
		robots:      robots,
		timeout:     adapterTimeout(timeout),
	}
}

func (a *GenericAdapter) Name() string           { return a.id }
func (a *GenericAdapter) DisplayName() string    { return a.name }
func (a *GenericAdapter) Kind() model.RecordKind { return model.KindUpdate }
func (a *GenericAdapter) Timeout() time.Duration { return a.timeout }

// Fetch downloads the page and extracts one record per container
func (a *GenericAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	if a.pageURL == "" {
		return nil, NotConfigured(a.id)
	}
	if a.templateErr != nil {
		return nil, &SourceError{Source: a.id, Kind: ErrConfiguration, Err: a.templateErr}
	}
	doc, finalURL, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	return a.extract(doc, finalURL), nil
}

func (a *GenericAdapter) fetchDocument(ctx context.Context) (*html.Node, string, error) {
	if a.robots != nil && !a.robots.IsAllowed(ctx, a.pageURL) {
		return nil, "", Unavailable(a.id, fmt.Errorf("disallowed by robots.txt: %s", a.pageURL))
	}

	header := http.Header{"Accept": {"text/html,application/xhtml+xml"}}
	result, err := a.fetcher.FetchWithRetry(ctx, a.pageURL, header)
	if err != nil {
		return nil, "", Classify(ctx, a.id, err)
	}

	doc, err := a.ParseHTML(string(result.Body))
	if err != nil {
		return nil, "", ParseFailure(a.id, err)
	}
	return doc, result.FinalURL, nil
}

func (a *GenericAdapter) extract(doc *html.Node, pageURL string) []model.RawRecord {
	base, _ := url.Parse(pageURL)

	var records []model.RawRecord
	for _, item := range a.template.container.SelectAll(doc) {
		fields := a.extractItem(item, base)
		if pickString(fields, "title") == "" {
			continue
		}
		records = append(records, model.RawRecord{
			Provider: a.id,
			Source:   a.name,
			Kind:     model.KindUpdate,
			Fields:   fields,
		})
	}
	return records
}

func (a *GenericAdapter) extractItem(item *html.Node, base *url.URL) map[string]any {
	fields := make(map[string]any)

	if n := a.template.title.SelectFirst(item); n != nil {
		fields["title"] = a.ExtractText(n)
	}

	linkNode := a.template.link.SelectFirst(item)
	if linkNode == nil && item.Data == "a" {
		linkNode = item
	}
	if linkNode != nil {
		if href := resolveHref(base, a.GetAttribute(linkNode, "href")); href != "" {
			fields["url"] = href
		}
	}

	if n := a.template.date.SelectFirst(item); n != nil {
		date := a.GetAttribute(n, "datetime")
		if date == "" {
			date = a.ExtractText(n)
		}
		fields["published"] = date
	}

	if n := a.template.summary.SelectFirst(item); n != nil {
		fields["content"] = a.ExtractText(n)
	}
	return fields
}

// resolveHref resolves a relative link against the page URL, keeping only
// http(s) targets.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
