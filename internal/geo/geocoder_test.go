package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/cache"
	"github.com/ppiankov/crisisfeed/internal/model"
)

func newFetcher() *adapters.Fetcher {
	return adapters.NewFetcher(model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "crisisfeed-test/1.0"})
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		name string
		p    model.Point
		want bool
	}{
		{"houston", model.Point{Lat: 29.76, Lon: -95.37}, true},
		{"null island", model.Point{}, false},
		{"near null island", model.Point{Lat: 0.1, Lon: -0.2}, false},
		{"equator but far east", model.Point{Lat: 0.1, Lon: 30}, true},
		{"lat out of range", model.Point{Lat: 91, Lon: 10}, false},
		{"lon out of range", model.Point{Lat: 10, Lon: -181}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plausible(tt.p, 0.5))
		})
	}
}

func TestNominatim_Geocode(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"29.7589","lon":"-95.3677","display_name":"Houston, Texas"}]`)
	}))
	defer srv.Close()

	n := NewNominatim(newFetcher(), model.GeocodingConfig{BaseURL: srv.URL, NullIslandRadius: 0.5})
	p, err := n.Geocode(context.Background(), "Houston, TX")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.InDelta(t, 29.7589, p.Lat, 1e-6)
	assert.InDelta(t, -95.3677, p.Lon, 1e-6)
	assert.Equal(t, "Houston, TX", gotQuery)
	assert.Equal(t, "crisisfeed-test/1.0", gotUA)
}

func TestNominatim_NoResultsAndNullIsland(t *testing.T) {
	body := `[]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	n := NewNominatim(newFetcher(), model.GeocodingConfig{BaseURL: srv.URL, NullIslandRadius: 0.5})

	p, err := n.Geocode(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, p)

	body = `[{"lat":"0.0","lon":"0.0"}]`
	_, err = n.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrImplausible)

	body = `[{"lat":"north","lon":"0.0"}]`
	_, err = n.Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, adapters.ErrParseFailure)
}

type countingGeocoder struct {
	calls int
	point *model.Point
	err   error
}

func (c *countingGeocoder) Geocode(context.Context, string) (*model.Point, error) {
	c.calls++
	return c.point, c.err
}

func newMemo() *cache.Memo {
	return cache.NewMemo(cache.NewMemoryCache(time.Hour, time.Hour), nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestCached_Geocode(t *testing.T) {
	inner := &countingGeocoder{point: &model.Point{Lat: 29.76, Lon: -95.37}}
	c := NewCached(inner, newMemo(), 0)

	for i := 0; i < 3; i++ {
		p, err := c.Geocode(context.Background(), "Houston, TX")
		require.NoError(t, err)
		assert.Equal(t, 29.76, p.Lat)
	}
	assert.Equal(t, 1, inner.calls)

	_, _ = c.Geocode(context.Background(), "houston, tx")
	assert.Equal(t, 1, inner.calls, "keys are case-insensitive")
}

func TestCached_FailuresNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("rate limited")}
	c := NewCached(inner, newMemo(), time.Hour)

	_, err := c.Geocode(context.Background(), "Houston")
	require.Error(t, err)
	_, _ = c.Geocode(context.Background(), "Houston")
	assert.Equal(t, 2, inner.calls)

	inner.err = nil
	p, err := c.Geocode(context.Background(), "Houston")
	require.NoError(t, err)
	assert.Nil(t, p)
	_, _ = c.Geocode(context.Background(), "Houston")
	assert.Equal(t, 4, inner.calls, "empty results are not cached")
}
