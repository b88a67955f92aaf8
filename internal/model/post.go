package model

import "time"

// Platform identifies the social network a post came from
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformBluesky Platform = "bluesky"
	PlatformMock    Platform = "mock"
)

// Classification labels what a post is asking for or offering
type Classification string

const (
	ClassHelpRequest Classification = "help_request"
	ClassOfferHelp   Classification = "offer_help"
	ClassInformation Classification = "information"
	ClassGeneral     Classification = "general"
)

// Metrics are the engagement counters of a post.
type Metrics struct {
	Likes   int `json:"likes"`
	Shares  int `json:"shares"`
	Replies int `json:"replies"`
}

// Engagement returns likes plus shares.
func (m Metrics) Engagement() int {
	return m.Likes + m.Shares
}

// Post is the canonical social-media record.
type Post struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Author         string         `json:"author"`
	CreatedAt      time.Time      `json:"created_at"`
	Platform       Platform       `json:"platform"`
	Metrics        Metrics        `json:"metrics"`
	Verified       bool           `json:"verified"`
	IsUrgent       bool           `json:"is_urgent"`
	Keywords       []string       `json:"keywords"`
	Classification Classification `json:"classification"`
	RelevanceScore float64        `json:"relevance_score"`
}

// DedupKey returns "platform:id".
func (p Post) DedupKey() string {
	if p.ID == "" {
		return ""
	}
	return string(p.Platform) + ":" + p.ID
}

func (p Post) Relevance() float64 { return p.RelevanceScore }

func (p Post) Timestamp() *time.Time {
	if p.CreatedAt.IsZero() {
		return nil
	}
	t := p.CreatedAt
	return &t
}

func (p Post) Provenance() string { return string(p.Platform) }
