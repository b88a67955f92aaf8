package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisisfeed/internal/model"
)

var testNow = time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC)

var houstonReq = Request{
	Context:    model.DisasterContext{Tags: []string{"flood"}, LocationName: "Houston, TX"},
	TimeWindow: 24 * time.Hour,
	Now:        testNow,
}

func jsonServer(t *testing.T, check func(r *http.Request), body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNWSAdapter_Fetch(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/alerts/active", r.URL.Path)
		assert.Equal(t, "TX", r.URL.Query().Get("area"))
		assert.Equal(t, "actual", r.URL.Query().Get("status"))
	}, `{"features":[
		{"id":"https://api.weather.gov/alerts/1","properties":{"headline":"Flood Warning for Harris County","description":"Water rising","severity":"Severe","sent":"2025-08-02T10:00:00Z"}},
		{"id":"x","properties":null}
	]}`)

	a := NewNWSAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL})
	records, err := a.Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "nws", rec.Provider)
	assert.Equal(t, model.KindUpdate, rec.Kind)
	assert.Equal(t, "https://api.weather.gov/alerts/1", rec.Fields["url"])
	assert.Equal(t, "Severe", rec.Fields["severity"])
}

func TestNWSAdapter_ProviderPageSize(t *testing.T) {
	server := jsonServer(t, nil, `{"features":[
		{"id":"1","properties":{"headline":"Heat Advisory","sent":"2025-07-30T10:00:00Z"}},
		{"id":"2","properties":{"headline":"Wind Advisory","sent":"2025-07-30T11:00:00Z"}},
		{"id":"3","properties":{"headline":"Flood Warning for Houston","sent":"2025-08-02T11:00:00Z"}}
	]}`)

	all, err := NewNWSAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL}).Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	assert.Len(t, all, 3, "no per-call cap is applied before window filtering")

	capped, err := NewNWSAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL, MaxResults: 2}).Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestNWSAdapter_PointQuery(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "29.7604,-95.3698", r.URL.Query().Get("point"))
		assert.Empty(t, r.URL.Query().Get("area"))
	}, `{"features":[]}`)

	req := houstonReq
	req.Coordinates = &model.Point{Lat: 29.7604, Lon: -95.3698}

	records, err := NewNWSAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL}).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNWSAdapter_BadJSON(t *testing.T) {
	server := jsonServer(t, nil, `<html>maintenance</html>`)

	_, err := NewNWSAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL}).Fetch(context.Background(), houstonReq)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestStateCode(t *testing.T) {
	assert.Equal(t, "TX", stateCode(model.DisasterContext{LocationName: "Houston, tx"}))
	assert.Equal(t, "", stateCode(model.DisasterContext{LocationName: "Houston"}))
	assert.Equal(t, "", stateCode(model.DisasterContext{LocationName: "Paris, France"}))
}

func TestFEMAAdapter_Fetch(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		assert.Equal(t, "/v2/DisasterDeclarationsSummaries", r.URL.Path)
		filter := r.URL.Query().Get("$filter")
		assert.Contains(t, filter, "declarationDate ge '2025-08-01T12:00:00.000Z'")
		assert.Contains(t, filter, "state eq 'TX'")
	}, `{"DisasterDeclarationsSummaries":[{
		"disasterNumber": 4781,
		"femaDeclarationString": "DR-4781-TX",
		"declarationType": "DR",
		"declarationTitle": "SEVERE STORMS AND FLOODING",
		"designatedArea": "Harris (County)",
		"incidentType": "Flood",
		"state": "TX",
		"declarationDate": "2025-08-02T00:00:00.000Z"
	}]}`)

	a := NewFEMAAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL})

	records, err := a.Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	require.Len(t, records, 1)

	f := records[0].Fields
	assert.Equal(t, "SEVERE STORMS AND FLOODING (Harris (County))", f["title"])
	assert.Equal(t, "https://www.fema.gov/disaster/4781", f["url"])
	assert.Contains(t, f["content"], "flood incident in Harris (County), TX")
}

func TestReliefWebAdapter_Fetch(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "crisisfeed-test", q.Get("appname"))
		assert.Equal(t, "flood houston", q.Get("query[value]"))
		assert.Equal(t, "2025-08-01T12:00:00Z", q.Get("filter[value][from]"))
	}, `{"data":[{"id":"1","fields":{
		"title":"Texas floods situation report",
		"body":"Shelters opened",
		"url_alias":"https://reliefweb.int/report/1",
		"date":{"created":"2025-08-02T08:00:00+00:00"},
		"source":[{"name":"OCHA"}]
	}}]}`)

	a := NewReliefWebAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL, AppName: "crisisfeed-test"})

	records, err := a.Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "OCHA via ReliefWeb", records[0].Source)
	assert.Equal(t, "https://reliefweb.int/report/1", records[0].Fields["url"])
	assert.Equal(t, "2025-08-02T08:00:00+00:00", records[0].Fields["published"])
}

func TestReliefWebAdapter_RequiresAppName(t *testing.T) {
	_, err := NewReliefWebAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: "http://unused"}).Fetch(context.Background(), houstonReq)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestStructuredAdapters_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewFEMAAdapter(newTestFetcher(), model.EndpointConfig{BaseURL: server.URL}).Fetch(context.Background(), houstonReq)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
