package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// FEMAAdapter reads disaster declarations from the OpenFEMA API
type FEMAAdapter struct {
	fetcher *Fetcher
	cfg     model.EndpointConfig
}

// NewFEMAAdapter creates a new OpenFEMA adapter
func NewFEMAAdapter(fetcher *Fetcher, cfg model.EndpointConfig) *FEMAAdapter {
	return &FEMAAdapter{fetcher: fetcher, cfg: cfg}
}

func (a *FEMAAdapter) Name() string           { return model.SourceFEMA }
func (a *FEMAAdapter) DisplayName() string    { return "FEMA" }
func (a *FEMAAdapter) Kind() model.RecordKind { return model.KindUpdate }
func (a *FEMAAdapter) Timeout() time.Duration { return adapterTimeout(a.cfg.Timeout) }

type femaResponse struct {
	Declarations []map[string]any `json:"DisasterDeclarationsSummaries"`
}

// Fetch retrieves declarations made inside the time window
func (a *FEMAAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	since := req.WindowStart(72 * time.Hour).Format("2006-01-02T15:04:05.000Z")

	filter := fmt.Sprintf("declarationDate ge '%s'", since)
	if state := stateCode(req.Context); state != "" {
		filter += fmt.Sprintf(" and state eq '%s'", state)
	}

	top := a.cfg.MaxResults
	if top <= 0 {
		top = 50
	}
	params := url.Values{
		"$filter":  {filter},
		"$orderby": {"declarationDate desc"},
		"$top":     {fmt.Sprint(top)},
	}
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v2/DisasterDeclarationsSummaries?" + params.Encode()

	var resp femaResponse
	if err := a.fetcher.FetchJSON(ctx, a.Name(), endpoint, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Declarations))
	for _, decl := range resp.Declarations {
		title := pickString(decl, "declarationTitle")
		area := pickString(decl, "designatedArea")
		if title != "" && area != "" {
			decl["title"] = fmt.Sprintf("%s (%s)", title, area)
		}
		decl["content"] = fmt.Sprintf("%s declaration %s for %s incident in %s, %s.",
			pickString(decl, "declarationType"),
			pickString(decl, "femaDeclarationString"),
			strings.ToLower(pickString(decl, "incidentType")),
			area,
			pickString(decl, "state"))
		if number := pickString(decl, "disasterNumber"); number != "" {
			decl["url"] = "https://www.fema.gov/disaster/" + number
		}
		records = append(records, model.RawRecord{
			Provider: a.Name(),
			Source:   a.DisplayName(),
			Kind:     model.KindUpdate,
			Fields:   decl,
		})
	}
	return limitRecords(records, top), nil
}
