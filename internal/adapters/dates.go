package adapters

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. ISO-like layouts come first, then the
// US-style MM/DD/YYYY forms used by agency pages.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate parses a publish date. It returns nil instead of failing when the
// value is empty or in an unknown format; callers treat nil as "age unknown".
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
