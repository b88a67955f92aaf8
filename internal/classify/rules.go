// Package classify assigns labels to normalized records using ordered rule
// tables. Evaluation order is part of the contract: the first rule that
// matches wins.
package classify

import (
	"strings"
	"unicode"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// Rule maps a predicate over lower-cased text to a label.
type Rule[L any] struct {
	Name  string
	Match func(text string) bool
	Label L
}

// Table is an ordered list of rules with a default label.
type Table[L any] struct {
	Rules   []Rule[L]
	Default L
}

// Apply returns the label of the first matching rule, or the default.
func (t Table[L]) Apply(text string) L {
	text = strings.ToLower(text)
	for _, r := range t.Rules {
		if r.Match(text) {
			return r.Label
		}
	}
	return t.Default
}

// Explain returns the name of the first matching rule, or "" for the default.
func (t Table[L]) Explain(text string) string {
	text = strings.ToLower(text)
	for _, r := range t.Rules {
		if r.Match(text) {
			return r.Name
		}
	}
	return ""
}

// ContainsAny returns a predicate matching text containing any of the words.
// Words must already be lower-case.
func ContainsAny(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			if w != "" && strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

// ContainsWord returns a predicate matching text with any of the words as a
// whole token, so "aid" does not match "said". Words must already be
// lower-case.
func ContainsWord(words ...string) func(string) bool {
	return func(text string) bool {
		for _, token := range strings.FieldsFunc(text, notWordRune) {
			for _, w := range words {
				if token == w {
					return true
				}
			}
		}
		return false
	}
}

// Either returns a predicate matching when any of preds match.
func Either(preds ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range preds {
			if p(text) {
				return true
			}
		}
		return false
	}
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// UpdateTypes is the update-type table.
var UpdateTypes = Table[model.UpdateType]{
	Rules: []Rule[model.UpdateType]{
		{Name: "evacuation", Match: ContainsAny("evacuat", "shelter in place", "shelter-in-place"), Label: model.UpdateEvacuation},
		{Name: "warning", Match: ContainsAny("warning"), Label: model.UpdateWarning},
		{Name: "alert", Match: ContainsAny("alert", "emergency declaration", "state of emergency", "emergency order"), Label: model.UpdateAlert},
		{Name: "watch", Match: ContainsWord("watch", "watches"), Label: model.UpdateWatch},
		{Name: "advisory", Match: ContainsAny("advisory", "advise"), Label: model.UpdateAdvisory},
		{Name: "update", Match: ContainsAny("update", "status", "situation report", "sitrep"), Label: model.UpdateUpdate},
		{Name: "relief", Match: Either(ContainsAny("relief", "assistance", "donat", "volunteer", "supplies"), ContainsWord("aid")), Label: model.UpdateRelief},
		{Name: "statement", Match: ContainsAny("statement", "press release", "announces", "declaration"), Label: model.UpdateStatement},
	},
	Default: model.UpdateGeneral,
}

// Priorities maps keywords onto a 1..5 priority for sources without a
// native severity field.
var Priorities = Table[int]{
	Rules: []Rule[int]{
		{Name: "critical", Match: ContainsAny("evacuat", "life-threatening", "catastrophic", "extreme", "mandatory", "immediately"), Label: 5},
		{Name: "severe", Match: ContainsAny("warning", "severe", "emergency", "danger"), Label: 4},
		{Name: "elevated", Match: Either(ContainsWord("watch", "watches"), ContainsAny("alert", "advisory")), Label: 3},
		{Name: "informational", Match: ContainsAny("update", "relief", "status", "assistance"), Label: 2},
	},
	Default: model.MinPriority,
}

// PostClassifications is the social-post classification table.
var PostClassifications = Table[model.Classification]{
	Rules: []Rule[model.Classification]{
		{Name: "help_request", Match: ContainsAny("need help", "needs help", "help needed", "please help", "sos", "trapped", "stranded", "need water", "need food", "need rescue", "send help"), Label: model.ClassHelpRequest},
		{Name: "offer_help", Match: ContainsAny("can help", "offering", "volunteer", "donate", "donating", "available to help", "have supplies", "free shelter"), Label: model.ClassOfferHelp},
		{Name: "information", Match: ContainsAny("update", "report", "confirmed", "officials", "according to", "warning", "alert", "closed", "evacuat"), Label: model.ClassInformation},
	},
	Default: model.ClassGeneral,
}

// UpdateType classifies title and content.
func UpdateType(title, content string) model.UpdateType {
	return UpdateTypes.Apply(title + " " + content)
}

// Priority derives a priority from title and content keywords.
func Priority(title, content string) int {
	return Priorities.Apply(title + " " + content)
}

// PostClassification classifies post content.
func PostClassification(content string) model.Classification {
	return PostClassifications.Apply(content)
}

// SeverityPriority maps a native alert severity onto a priority.
func SeverityPriority(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "extreme":
		return 5
	case "severe":
		return 4
	case "moderate":
		return 3
	case "minor":
		return 2
	default:
		return 1
	}
}

// UrgencyDetector flags content containing any configured urgent keyword.
type UrgencyDetector struct {
	keywords []string
}

// NewUrgencyDetector builds a detector from the configured keyword list
func NewUrgencyDetector(keywords []string) *UrgencyDetector {
	d := &UrgencyDetector{}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			d.keywords = append(d.keywords, k)
		}
	}
	return d
}

// IsUrgent reports whether content contains an urgent keyword
func (d *UrgencyDetector) IsUrgent(content string) bool {
	return ContainsAny(d.keywords...)(strings.ToLower(content))
}

// MatchKeywords returns the configured keywords found in content, in list order.
func MatchKeywords(content string, keywords []string) []string {
	text := strings.ToLower(content)
	var out []string
	seen := make(map[string]bool)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		if strings.Contains(text, k) {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
