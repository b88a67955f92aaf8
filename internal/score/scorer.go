package score

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// Component is one additive term of a relevance score
type Component struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Formula string  `json:"formula"`
}

// Breakdown is a relevance score with the terms that produced it
type Breakdown struct {
	Total      float64     `json:"total"`
	Components []Component `json:"components"`
}

func (b *Breakdown) add(name string, value float64, formula string) {
	if value == 0 {
		return
	}
	b.Total += value
	b.Components = append(b.Components, Component{Name: name, Value: value, Formula: formula})
}

// Scorer computes relevance scores against a disaster context
type Scorer struct {
	cfg   model.ScoringConfig
	clock clockwork.Clock
}

// NewScorer creates a new scorer. A nil clock uses real time.
func NewScorer(cfg model.ScoringConfig, clock clockwork.Clock) *Scorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scorer{cfg: cfg, clock: clock}
}

// Update scores an official update. The result is unbounded above.
func (s *Scorer) Update(u model.Update, dctx model.DisasterContext) float64 {
	return s.ExplainUpdate(u, dctx).Total
}

// ExplainUpdate returns the score of u with its components
func (s *Scorer) ExplainUpdate(u model.Update, dctx model.DisasterContext) Breakdown {
	var b Breakdown
	text := strings.ToLower(u.Title + " " + u.Content)

	// 1. Tag matches, accumulated per tag
	if n := countTagMatches(text, dctx); n > 0 {
		b.add("tags", float64(n)*s.cfg.UpdateTagWeight,
			fmt.Sprintf("%d matching tags * %.2f", n, s.cfg.UpdateTagWeight))
	}

	// 2. Location, counted once
	if s.mentionsLocation(text, dctx) {
		b.add("location", s.cfg.UpdateLocationWeight, "location mentioned")
	}

	// 3. Recency
	b.add("recency", s.recency(u.PublishedAt, s.cfg.UpdateRecentDay, s.cfg.UpdateRecentTwoDays), "age < 24h or < 48h")

	// 4. Priority
	b.add("priority", float64(u.PriorityLevel)*s.cfg.PriorityWeight,
		fmt.Sprintf("priority %d * %.2f", u.PriorityLevel, s.cfg.PriorityWeight))

	return b
}

// Post scores a social post. The result is clamped to [0, 1].
func (s *Scorer) Post(p model.Post, dctx model.DisasterContext) float64 {
	return s.ExplainPost(p, dctx).Total
}

// ExplainPost returns the score of p with its components
func (s *Scorer) ExplainPost(p model.Post, dctx model.DisasterContext) Breakdown {
	var b Breakdown
	text := strings.ToLower(p.Content)

	if n := countTagMatches(text, dctx); n > 0 {
		b.add("tags", float64(n)*s.cfg.PostTagWeight,
			fmt.Sprintf("%d matching tags * %.2f", n, s.cfg.PostTagWeight))
	}

	// Posts are short, so each location fragment counts separately.
	if n := s.countLocationFragments(text, dctx); n > 0 {
		b.add("location", float64(n)*s.cfg.PostLocationWeight,
			fmt.Sprintf("%d location fragments * %.2f", n, s.cfg.PostLocationWeight))
	}

	b.add("recency", s.recency(p.Timestamp(), s.cfg.PostRecentDay, s.cfg.PostRecentTwoDays), "age < 24h or < 48h")

	if p.IsUrgent {
		b.add("urgent", s.cfg.UrgentWeight, "urgent keyword")
	}

	engagement := p.Metrics.Engagement()
	if engagement > s.cfg.EngagementLow {
		b.add("engagement", s.cfg.EngagementWeight, fmt.Sprintf("likes+shares > %d", s.cfg.EngagementLow))
	}
	if engagement > s.cfg.EngagementHigh {
		b.add("engagement_high", s.cfg.EngagementWeight, fmt.Sprintf("likes+shares > %d", s.cfg.EngagementHigh))
	}

	if p.Verified {
		b.add("verified", s.cfg.VerifiedWeight, "verified author")
	}

	b.Total = clamp01(b.Total)
	return b
}

// ScoreUpdates sets RelevanceScore on every update in place
func (s *Scorer) ScoreUpdates(updates []model.Update, dctx model.DisasterContext) {
	for i := range updates {
		updates[i].RelevanceScore = s.Update(updates[i], dctx)
	}
}

// ScorePosts sets RelevanceScore on every post in place
func (s *Scorer) ScorePosts(posts []model.Post, dctx model.DisasterContext) {
	for i := range posts {
		posts[i].RelevanceScore = s.Post(posts[i], dctx)
	}
}

func countTagMatches(text string, dctx model.DisasterContext) int {
	n := 0
	for _, tag := range dctx.NormalizedTags() {
		if strings.Contains(text, tag) {
			n++
		}
	}
	return n
}

func (s *Scorer) mentionsLocation(text string, dctx model.DisasterContext) bool {
	full := strings.ToLower(strings.TrimSpace(dctx.LocationName))
	if full == "" {
		return false
	}
	if strings.Contains(text, full) {
		return true
	}
	return s.countLocationFragments(text, dctx) > 0
}

// countLocationFragments counts comma-separated parts of the location name
// found in text. Short fragments such as state codes are ignored.
func (s *Scorer) countLocationFragments(text string, dctx model.DisasterContext) int {
	n := 0
	for _, fragment := range dctx.LocationFragments() {
		if len(fragment) < s.cfg.MinLocationFragment {
			continue
		}
		if strings.Contains(text, fragment) {
			n++
		}
	}
	return n
}

// recency returns day when ts is under 24h old, twoDays under 48h, else 0.
// Unknown timestamps earn nothing.
func (s *Scorer) recency(ts *time.Time, day, twoDays float64) float64 {
	if ts == nil {
		return 0
	}
	age := s.clock.Since(*ts)
	switch {
	case age < 24*time.Hour:
		return day
	case age < 48*time.Hour:
		return twoDays
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
