package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// ReliefWebAdapter searches situation reports on ReliefWeb
type ReliefWebAdapter struct {
	fetcher *Fetcher
	cfg     model.EndpointConfig
}

// NewReliefWebAdapter creates a new ReliefWeb adapter
func NewReliefWebAdapter(fetcher *Fetcher, cfg model.EndpointConfig) *ReliefWebAdapter {
	return &ReliefWebAdapter{fetcher: fetcher, cfg: cfg}
}

func (a *ReliefWebAdapter) Name() string           { return model.SourceReliefWeb }
func (a *ReliefWebAdapter) DisplayName() string    { return "ReliefWeb" }
func (a *ReliefWebAdapter) Kind() model.RecordKind { return model.KindUpdate }
func (a *ReliefWebAdapter) Timeout() time.Duration { return adapterTimeout(a.cfg.Timeout) }

type reliefWebResponse struct {
	Data []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"data"`
}

// Fetch searches reports matching the disaster tags and location
func (a *ReliefWebAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	if a.cfg.AppName == "" {
		return nil, NotConfigured(a.Name())
	}

	terms := append([]string{}, req.Context.NormalizedTags()...)
	if fragments := req.Context.LocationFragments(); len(fragments) > 0 {
		terms = append(terms, fragments[0])
	}
	if len(terms) == 0 {
		terms = []string{"disaster"}
	}

	limit := a.cfg.MaxResults
	if limit <= 0 {
		limit = 30
	}
	params := url.Values{
		"appname":             {a.cfg.AppName},
		"query[value]":        {strings.Join(terms, " ")},
		"query[operator]":     {"OR"},
		"filter[field]":       {"date.created"},
		"filter[value][from]": {req.WindowStart(72 * time.Hour).Format(time.RFC3339)},
		"limit":               {fmt.Sprint(limit)},
		"sort[]":              {"date.created:desc"},
		"fields[include][]":   {"title", "body", "url", "url_alias", "date.created", "source.name"},
	}
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/reports?" + params.Encode()

	var resp reliefWebResponse
	if err := a.fetcher.FetchJSON(ctx, a.Name(), endpoint, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		fields := item.Fields
		if fields == nil {
			continue
		}
		if date, ok := fields["date"].(map[string]any); ok {
			fields["published"] = pickString(date, "created", "original")
		}
		if _, ok := fields["url"]; !ok {
			fields["url"] = pickString(fields, "url_alias")
		}
		source := a.DisplayName()
		if origins, ok := fields["source"].([]any); ok && len(origins) > 0 {
			if first, ok := origins[0].(map[string]any); ok {
				if name := pickString(first, "name"); name != "" {
					source = fmt.Sprintf("%s via ReliefWeb", name)
				}
			}
		}
		records = append(records, model.RawRecord{
			Provider: a.Name(),
			Source:   source,
			Kind:     model.KindUpdate,
			Fields:   fields,
		})
	}
	return limitRecords(records, limit), nil
}
