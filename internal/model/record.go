package model

import "time"

// RecordKind tells the normalizer which canonical schema a raw record maps to.
type RecordKind string

const (
	KindUpdate RecordKind = "update"
	KindPost   RecordKind = "post"
)

// RawRecord is the provider-specific payload emitted by an adapter before
// normalization. Fields keeps the provider's own key names; the normalizer
// knows which aliases to look for.
type RawRecord struct {
	Provider string // source token, e.g. "nws"
	Source   string // display name, e.g. "National Weather Service"
	Kind     RecordKind
	Fields   map[string]any
}

// Record is implemented by both canonical record types so the ranking and
// filtering stages can be shared.
type Record interface {
	// DedupKey returns the natural key for deduplication, or "" when the
	// record has none.
	DedupKey() string
	// Relevance returns the computed relevance score.
	Relevance() float64
	// Timestamp returns the publication time, or nil when unknown.
	Timestamp() *time.Time
	// Provenance returns the display source or platform.
	Provenance() string
}
