package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/crisisfeed/internal/model"
)

func update(title, url string, score float64, ts *time.Time) model.Update {
	return model.Update{Title: title, URL: model.StringPtr(url), RelevanceScore: score, PublishedAt: ts}
}

func titles(updates []model.Update) []string {
	out := make([]string, len(updates))
	for i, u := range updates {
		out[i] = u.Title
	}
	return out
}

func TestDedup_KeepsHigherScore(t *testing.T) {
	in := []model.Update{
		update("a-low", "https://x/a", 0.5, nil),
		update("b", "https://x/b", 0.7, nil),
		update("a-high", "https://x/a", 0.9, nil),
	}

	got := Dedup(in)
	assert.Equal(t, []string{"a-high", "b"}, titles(got))
}

func TestDedup_Idempotent(t *testing.T) {
	in := []model.Update{
		update("a", "https://x/a", 0.5, nil),
		update("a-again", "https://x/a", 0.5, nil),
	}

	once := Dedup(in)
	assert.Equal(t, []string{"a"}, titles(once), "ties keep the earlier record")
	assert.Equal(t, once, Dedup(once))
}

func TestDedup_NilURLNeverMerged(t *testing.T) {
	in := []model.Update{
		update("a", "", 0.5, nil),
		update("b", "", 0.5, nil),
	}
	assert.Len(t, Dedup(in), 2)
}

func TestDedup_PostsByPlatformAndID(t *testing.T) {
	in := []model.Post{
		{ID: "1", Platform: model.PlatformTwitter, RelevanceScore: 0.1},
		{ID: "1", Platform: model.PlatformBluesky, RelevanceScore: 0.2},
		{ID: "1", Platform: model.PlatformTwitter, RelevanceScore: 0.3},
	}

	got := Dedup(in)
	assert.Len(t, got, 2)
	assert.InDelta(t, 0.3, got[0].RelevanceScore, 1e-9)
	assert.Equal(t, model.PlatformBluesky, got[1].Platform)
}

func TestRank_Order(t *testing.T) {
	now := time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC)
	older := now.Add(-time.Hour)

	in := []model.Update{
		update("low", "", 0.1, &now),
		update("tie-old", "", 0.5, &older),
		update("tie-undated-1", "", 0.5, nil),
		update("tie-new", "", 0.5, &now),
		update("tie-undated-2", "", 0.5, nil),
		update("high", "", 0.9, nil),
	}

	got := Rank(in)
	assert.Equal(t, []string{"high", "tie-new", "tie-old", "tie-undated-1", "tie-undated-2", "low"}, titles(got))
	assert.Equal(t, "low", in[0].Title, "input is not modified")
}

func TestRank_Deterministic(t *testing.T) {
	in := []model.Update{
		update("a", "", 0.5, nil),
		update("b", "", 0.5, nil),
		update("c", "", 0.5, nil),
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"a", "b", "c"}, titles(Rank(in)))
	}
}
