package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Field aliases across providers, in lookup order.
var (
	titleKeys   = []string{"title", "headline", "event", "declarationTitle", "name"}
	contentKeys = []string{"content", "description", "body", "summary", "text", "instruction"}
	dateKeys    = []string{"published", "publishedAt", "published_at", "sent", "effective", "declarationDate", "date", "created", "created_at", "createdAt"}
	urlKeys     = []string{"url", "link", "@id", "web"}
	authorKeys  = []string{"author", "username", "handle", "user"}
	idKeys      = []string{"id", "cid", "uri"}
)

// pickStr returns the first non-empty string value for keys.
func pickStr(m map[string]any, keys ...string) string {
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
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case fmt.Stringer:
			s = t.String()
		default:
			continue
		}
		if s = collapseSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// pickInt reads a count that may have been decoded as float64 or string.
func pickInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch t := m[k].(type) {
		case int:
			return t
		case int64:
			return int(t)
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return n
			}
		}
	}
	return 0
}

func pickBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch t := m[k].(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
