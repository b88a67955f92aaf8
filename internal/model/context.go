package model

import (
	"sort"
	"strings"
)

// DisasterContext describes the disaster a single aggregation call is about.
// It is read-only for the lifetime of the call.
type DisasterContext struct {
	Tags         []string `json:"tags" yaml:"tags"`
	LocationName string   `json:"location_name" yaml:"location_name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// NormalizedTags returns the tags lower-cased, trimmed, de-duplicated and sorted.
func (c DisasterContext) NormalizedTags() []string {
	seen := make(map[string]bool, len(c.Tags))
	tags := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// PrimaryTag returns the first tag as supplied by the caller, or "disaster".
func (c DisasterContext) PrimaryTag() string {
	for _, tag := range c.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			return t
		}
	}
	return "disaster"
}

// LocationFragments splits the location name on commas, e.g.
// "Houston, TX" -> ["houston", "tx"].
func (c DisasterContext) LocationFragments() []string {
	var fragments []string
	for _, part := range strings.Split(c.LocationName, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p != "" {
			fragments = append(fragments, p)
		}
	}
	return fragments
}

// Fingerprint is a stable textual form of the context used for cache keys.
func (c DisasterContext) Fingerprint() string {
	return strings.Join(c.NormalizedTags(), ",") + "|" +
		strings.ToLower(strings.TrimSpace(c.LocationName)) + "|" +
		strings.ToLower(strings.TrimSpace(c.Description))
}

// Point is a WGS-84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
