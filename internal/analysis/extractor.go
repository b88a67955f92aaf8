package analysis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Extractor pulls disaster-relevant keywords out of free text
type Extractor interface {
	// Name returns the provider name
	Name() string

	// ExtractKeywords returns lower-cased keywords found in text
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}

// MaxKeywords caps how many keywords a single call may return
const MaxKeywords = 8

const systemPrompt = "You extract short disaster-response keywords from social media posts. " +
	"Reply with a JSON array of lower-case strings and nothing else. " +
	"Prefer hazards, needs, places and infrastructure. Return [] when nothing applies."

// BuildPrompt builds the user message for a post
func BuildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Extract at most ")
	sb.WriteString(strconv.Itoa(MaxKeywords))
	sb.WriteString(" keywords from this post:\n\n")
	sb.WriteString(strings.TrimSpace(text))
	return sb.String()
}

// ParseKeywords accepts either a JSON array or a comma/newline separated list,
// optionally wrapped in a markdown code fence.
func ParseKeywords(reply string) []string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	var raw []string
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		raw = strings.FieldsFunc(reply, func(r rune) bool { return r == ',' || r == '\n' })
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		kw = strings.Trim(kw, "\"'`-*# .")
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}
