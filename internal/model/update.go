package model

import "time"

// UpdateType classifies an official update
type UpdateType string

const (
	UpdateAlert      UpdateType = "alert"
	UpdateAdvisory   UpdateType = "advisory"
	UpdateUpdate     UpdateType = "update"
	UpdateEvacuation UpdateType = "evacuation"
	UpdateRelief     UpdateType = "relief"
	UpdateGeneral    UpdateType = "general"
	UpdateWarning    UpdateType = "warning"
	UpdateWatch      UpdateType = "watch"
	UpdateStatement  UpdateType = "statement"
)

// Priority bounds for Update.PriorityLevel
const (
	MinPriority = 1
	MaxPriority = 5
)

// MockSource marks synthetic records.
const MockSource = "mock"

// Update is the canonical official-update record.
type Update struct {
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	URL            *string    `json:"url"`
	Source         string     `json:"source"`
	PublishedAt    *time.Time `json:"published_at"`
	UpdateType     UpdateType `json:"update_type"`
	PriorityLevel  int        `json:"priority_level"`
	RelevanceScore float64    `json:"relevance_score"`
	Synthetic      bool       `json:"synthetic,omitempty"`
}

// DedupKey returns the URL, which together with the disaster context is the
// natural key of an update.
func (u Update) DedupKey() string {
	if u.URL == nil {
		return ""
	}
	return *u.URL
}

func (u Update) Relevance() float64    { return u.RelevanceScore }
func (u Update) Timestamp() *time.Time { return u.PublishedAt }
func (u Update) Provenance() string    { return u.Source }

// Text returns title and content joined for keyword matching.
func (u Update) Text() string {
	return u.Title + " " + u.Content
}

// ClampPriority bounds p to [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
