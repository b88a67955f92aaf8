package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// NWSAdapter reads active alerts from the National Weather Service API.
// When coordinates are known the query is narrowed to that point.
type NWSAdapter struct {
	fetcher *Fetcher
	cfg     model.EndpointConfig
}

// NewNWSAdapter creates a new NWS alerts adapter
func NewNWSAdapter(fetcher *Fetcher, cfg model.EndpointConfig) *NWSAdapter {
	return &NWSAdapter{fetcher: fetcher, cfg: cfg}
}

func (a *NWSAdapter) Name() string           { return model.SourceNWS }
func (a *NWSAdapter) DisplayName() string    { return "National Weather Service" }
func (a *NWSAdapter) Kind() model.RecordKind { return model.KindUpdate }
func (a *NWSAdapter) Timeout() time.Duration { return adapterTimeout(a.cfg.Timeout) }

type nwsResponse struct {
	Features []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// Fetch retrieves active alerts
func (a *NWSAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	params := url.Values{"status": {"actual"}}
	if req.Coordinates != nil {
		params.Set("point", fmt.Sprintf("%.4f,%.4f", req.Coordinates.Lat, req.Coordinates.Lon))
	} else if state := stateCode(req.Context); state != "" {
		params.Set("area", state)
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/alerts/active?" + params.Encode()
	header := http.Header{"Accept": {"application/geo+json"}}

	var resp nwsResponse
	if err := a.fetcher.FetchJSON(ctx, a.Name(), endpoint, header, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Features))
	for _, feature := range resp.Features {
		if feature.Properties == nil {
			continue
		}
		fields := feature.Properties
		if _, ok := fields["url"]; !ok {
			link := pickString(fields, "@id", "web")
			if link == "" {
				link = feature.ID
			}
			fields["url"] = link
		}
		records = append(records, model.RawRecord{
			Provider: a.Name(),
			Source:   a.DisplayName(),
			Kind:     model.KindUpdate,
			Fields:   fields,
		})
	}
	return limitRecords(records, a.cfg.MaxResults), nil
}

// stateCode returns a two-letter US state code from the location name, e.g.
// "Houston, TX" -> "TX".
func stateCode(dctx model.DisasterContext) string {
	parts := strings.Split(dctx.LocationName, ",")
	if len(parts) < 2 {
		return ""
	}
	last := strings.ToUpper(strings.TrimSpace(parts[len(parts)-1]))
	if len(last) != 2 {
		return ""
	}
	for _, r := range last {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return last
}
