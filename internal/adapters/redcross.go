package adapters

import (
	"context"
	"strings"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/util"
)

// redCrossTemplate matches the press release listing
var redCrossTemplate = model.ScrapeTemplate{
	Container: "div.press-release-item",
	Title:     "h3",
	Link:      "a",
	Date:      "span.date",
	Summary:   "p",
}

// RedCrossAdapter scrapes American Red Cross press releases. Releases that
// mention none of the disaster tags are kept only when none match.
type RedCrossAdapter struct {
	*GenericAdapter
}

// NewRedCrossAdapter creates a new Red Cross press release adapter
func NewRedCrossAdapter(fetcher *Fetcher, robots *util.RobotsChecker, cfg model.EndpointConfig) *RedCrossAdapter {
	src := model.ScrapeSource{
		ID:       model.SourceRedCross,
		Name:     "American Red Cross",
		URL:      cfg.BaseURL,
		Enabled:  cfg.Enabled,
		Template: redCrossTemplate,
	}
	return &RedCrossAdapter{GenericAdapter: NewGenericAdapter(src, fetcher, robots, cfg.Timeout)}
}

// Fetch extracts releases and prefers those mentioning the disaster
func (a *RedCrossAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	doc, finalURL, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	all := a.extract(doc, finalURL)

	tags := req.Context.NormalizedTags()
	if len(tags) == 0 {
		return all, nil
	}

	var matching []model.RawRecord
	for _, rec := range all {
		text := strings.ToLower(pickString(rec.Fields, "title") + " " + pickString(rec.Fields, "content"))
		for _, tag := range tags {
			if strings.Contains(text, tag) {
				matching = append(matching, rec)
				break
			}
		}
	}
	if len(matching) == 0 {
		matching = all
	}
	return matching, nil
}
