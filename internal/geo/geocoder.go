// Package geo resolves free-text locations to coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/cache"
	"github.com/ppiankov/crisisfeed/internal/model"
)

// ErrImplausible is returned for coordinates that fail the sanity check.
var ErrImplausible = errors.New("implausible coordinates")

// Geocoder converts a location name to coordinates. A nil point with a nil
// error means the provider found nothing.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (*model.Point, error)
}

// Plausible rejects out-of-range coordinates and points within radius
// degrees of (0, 0), which providers return for failed lookups.
func Plausible(p model.Point, radius float64) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return false
	}
	return math.Abs(p.Lat) > radius || math.Abs(p.Lon) > radius
}

// Nominatim implements Geocoder using the OpenStreetMap Nominatim API.
type Nominatim struct {
	fetcher *adapters.Fetcher
	baseURL string
	radius  float64
}

// NewNominatim creates a Nominatim client
func NewNominatim(fetcher *adapters.Fetcher, cfg model.GeocodingConfig) *Nominatim {
	base := cfg.BaseURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	return &Nominatim{fetcher: fetcher, baseURL: strings.TrimRight(base, "/"), radius: cfg.NullIslandRadius}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for location
func (n *Nominatim) Geocode(ctx context.Context, location string) (*model.Point, error) {
	params := url.Values{
		"q":      {location},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	var results []nominatimResult
	if err := n.fetcher.FetchJSON(ctx, "geocode", n.baseURL+"/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return nil, adapters.ParseFailure("geocode", fmt.Errorf("bad coordinates %q,%q", results[0].Lat, results[0].Lon))
	}

	p := model.Point{Lat: lat, Lon: lon}
	if !Plausible(p, n.radius) {
		return nil, fmt.Errorf("%w: %.4f,%.4f for %q", ErrImplausible, lat, lon, location)
	}
	return &p, nil
}

// Cached memoizes another Geocoder. Failed and empty lookups are not cached.
type Cached struct {
	inner Geocoder
	memo  *cache.Memo
	ttl   time.Duration
}

// NewCached wraps inner with a cache
func NewCached(inner Geocoder, memo *cache.Memo, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{inner: inner, memo: memo, ttl: ttl}
}

// Geocode returns the cached point or asks the wrapped geocoder
func (c *Cached) Geocode(ctx context.Context, location string) (*model.Point, error) {
	key := cache.Key("geocode", "forward", location)
	p, _, err := cache.GetOrCompute(ctx, c.memo, key, "geocode", c.ttl, func(ctx context.Context) (*model.Point, error) {
		return c.inner.Geocode(ctx, location)
	})
	return p, err
}
