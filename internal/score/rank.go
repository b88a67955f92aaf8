package score

import (
	"sort"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// Dedup collapses records sharing a dedup key, keeping the higher-scored
// instance in the position of the first occurrence. Records without a key
// are never merged. Equal scores keep the earlier record.
func Dedup[T model.Record](records []T) []T {
	out := make([]T, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		key := r.DedupKey()
		if key == "" {
			out = append(out, r)
			continue
		}
		if i, ok := index[key]; ok {
			if r.Relevance() > out[i].Relevance() {
				out[i] = r
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// Rank returns records ordered by score descending, then newer timestamp,
// then input order. Records with a timestamp sort ahead of records without
// one at equal score. The input slice is not modified.
func Rank[T model.Record](records []T) []T {
	out := make([]T, len(records))
	copy(out, records)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Relevance() != b.Relevance() {
			return a.Relevance() > b.Relevance()
		}
		ta, tb := a.Timestamp(), b.Timestamp()
		switch {
		case ta != nil && tb != nil:
			return ta.After(*tb)
		case ta != nil:
			return true
		default:
			return false
		}
	})
	return out
}
