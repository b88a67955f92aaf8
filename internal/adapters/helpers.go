package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// defaultAdapterTimeout applies when a provider has no explicit timeout.
const defaultAdapterTimeout = 12 * time.Second

func adapterTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultAdapterTimeout
	}
	return d
}

// pickString returns the first non-empty value for keys, formatting numbers
// as integers where they are whole.
func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			if t == float64(int64(t)) {
				s = fmt.Sprintf("%d", int64(t))
			} else {
				s = fmt.Sprintf("%g", t)
			}
		case int:
			s = fmt.Sprintf("%d", t)
		case int64:
			s = fmt.Sprintf("%d", t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func limitRecords(records []model.RawRecord, max int) []model.RawRecord {
	if max > 0 && len(records) > max {
		return records[:max]
	}
	return records
}

// searchTerms builds the term list for social queries: tags first, then the
// primary location fragment.
func searchTerms(req Request) []string {
	terms := append([]string{}, req.Context.NormalizedTags()...)
	if fragments := req.Context.LocationFragments(); len(fragments) > 0 {
		terms = append(terms, fragments[0])
	}
	if len(terms) == 0 {
		for i, kw := range req.Keywords {
			if i >= 3 {
				break
			}
			terms = append(terms, kw)
		}
	}
	return terms
}
