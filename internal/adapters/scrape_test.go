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
	"github.com/ppiankov/crisisfeed/internal/util"
)

const pressPage = `<html><body>
<div class="press-release-item">
	<h3>Red Cross opens shelters after Houston flood</h3>
	<a href="/news/houston-flood">Read more</a>
	<span class="date">08/01/2025</span>
	<p>Volunteers are supporting families.</p>
</div>
<div class="press-release-item">
	<h3>Blood drive this weekend</h3>
	<a href="https://www.redcross.org/news/blood">Read more</a>
	<span class="date">07/30/2025</span>
</div>
<div class="press-release-item"><p>No title here</p></div>
</body></html>`

func htmlServer(t *testing.T, robots string, page string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			if robots == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(robots))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRedCrossAdapter_Fetch(t *testing.T) {
	server := htmlServer(t, "", pressPage)
	a := NewRedCrossAdapter(newTestFetcher(), nil, model.EndpointConfig{BaseURL: server.URL + "/press", Enabled: true})

	assert.Equal(t, "redcross", a.Name())
	assert.Equal(t, "American Red Cross", a.DisplayName())

	records, err := a.Fetch(context.Background(), houstonReq)
	require.NoError(t, err)
	require.Len(t, records, 1, "only releases mentioning a tag are kept")

	f := records[0].Fields
	assert.Equal(t, "Red Cross opens shelters after Houston flood", f["title"])
	assert.Equal(t, server.URL+"/news/houston-flood", f["url"])
	assert.Equal(t, "08/01/2025", f["published"])
	assert.Equal(t, "Volunteers are supporting families.", f["content"])
}

func TestRedCrossAdapter_NoTagMatchKeepsAll(t *testing.T) {
	server := htmlServer(t, "", pressPage)
	a := NewRedCrossAdapter(newTestFetcher(), nil, model.EndpointConfig{BaseURL: server.URL})

	req := houstonReq
	req.Context = model.DisasterContext{Tags: []string{"wildfire"}}
	records, err := a.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestGenericAdapter_Fetch(t *testing.T) {
	page := `<html><body><ul id="alerts">
		<li class="alert"><a class="title" href="alerts/1.html">Boil water notice</a><time datetime="2025-08-02T09:00:00Z">this morning</time></li>
		<li class="alert"><a class="title" href="javascript:void(0)">Broken link</a></li>
	</ul></body></html>`
	server := htmlServer(t, "", page)

	src := model.ScrapeSource{
		ID:      "County-OEM",
		URL:     server.URL + "/news/",
		Enabled: true,
		Template: model.ScrapeTemplate{
			Container: "#alerts li.alert",
			Title:     "a.title",
			Link:      "a.title",
			Date:      "time",
		},
	}
	a := NewGenericAdapter(src, newTestFetcher(), nil, 0)
	assert.Equal(t, "county-oem", a.Name())
	assert.Equal(t, "County-OEM", a.DisplayName())
	assert.Equal(t, defaultAdapterTimeout, a.Timeout())

	records, err := a.Fetch(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, server.URL+"/news/alerts/1.html", records[0].Fields["url"])
	assert.Equal(t, "2025-08-02T09:00:00Z", records[0].Fields["published"])
	assert.NotContains(t, records[1].Fields, "url")
}

func TestGenericAdapter_NotConfigured(t *testing.T) {
	a := NewGenericAdapter(model.ScrapeSource{ID: "empty"}, newTestFetcher(), nil, time.Second)
	_, err := a.Fetch(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGenericAdapter_InvalidSelector(t *testing.T) {
	src := model.ScrapeSource{
		ID:       "broken",
		URL:      "http://unused",
		Enabled:  true,
		Template: model.ScrapeTemplate{Container: "div[", Title: "h3"},
	}
	a := NewGenericAdapter(src, newTestFetcher(), nil, time.Second)
	_, err := a.Fetch(context.Background(), Request{})
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), `selector "div["`)
}

func TestGenericAdapter_RobotsDisallowed(t *testing.T) {
	server := htmlServer(t, "User-agent: *\nDisallow: /\n", pressPage)
	robots := util.NewRobotsChecker("test-agent", 5*time.Second, time.Hour)

	a := NewRedCrossAdapter(newTestFetcher(), robots, model.EndpointConfig{BaseURL: server.URL + "/press"})
	_, err := a.Fetch(context.Background(), houstonReq)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "robots.txt")
}
