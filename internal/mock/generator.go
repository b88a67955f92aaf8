// Package mock produces synthetic disaster records without any network I/O.
// Every record it emits carries the "mock" source and a placeholder URL under
// mock.crisisfeed.invalid so consumers can tell it apart from live data.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/normalize"
)

// BaseURL prefixes every synthetic URL.
const BaseURL = "https://mock.crisisfeed.invalid"

// namespace seeds deterministic post IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(BaseURL))

type updateTemplate struct {
	title    string
	content  string
	severity string
}

var updateTemplates = []updateTemplate{
	{"%[1]s Warning issued for %[2]s", "Officials have issued a %[1]s warning for %[2]s. Residents should monitor local news and prepare to act.", "severe"},
	{"Evacuation guidance for %[2]s", "Evacuation routes out of %[2]s are open. Follow directions from local authorities due to the %[1]s.", "extreme"},
	{"Shelters open in %[2]s", "Emergency shelters are accepting residents affected by the %[1]s in %[2]s.", "moderate"},
	{"%[1]s relief efforts underway in %[2]s", "Relief organizations are distributing water and supplies across %[2]s.", "minor"},
	{"Situation update: %[1]s in %[2]s", "Crews continue to assess %[1]s damage in %[2]s. Further updates will follow.", ""},
}

var postTemplates = []string{
	"URGENT: need help near %[2]s, water rising fast #%[3]s",
	"Roads closed across %[2]s because of the %[1]s, officials confirmed",
	"I can help with transport and supplies in %[2]s, DM me #%[3]s",
	"Stay safe everyone in %[2]s, the %[1]s looks bad tonight",
	"Shelter at the community center in %[2]s has space and food #%[3]s",
}

// Generator builds synthetic records from templates
type Generator struct {
	normalizer *normalize.Normalizer
	clock      clockwork.Clock
}

// NewGenerator creates a generator. A nil clock uses real time.
func NewGenerator(normalizer *normalize.Normalizer, clock clockwork.Clock) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{normalizer: normalizer, clock: clock}
}

// RawUpdates returns count raw update records for dctx
func (g *Generator) RawUpdates(dctx model.DisasterContext, count int) []model.RawRecord {
	tag, location := subject(dctx)
	now := g.clock.Now().UTC()

	records := make([]model.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		tpl := updateTemplates[i%len(updateTemplates)]
		fields := map[string]any{
			"title":     fmt.Sprintf(tpl.title, titleCase(tag), location),
			"content":   fmt.Sprintf(tpl.content, tag, location),
			"url":       fmt.Sprintf("%s/updates/%s/%d", BaseURL, slug(tag), i+1),
			"published": now.Add(-time.Duration(i) * 2 * time.Hour).Format(time.RFC3339),
		}
		if tpl.severity != "" {
			fields["severity"] = tpl.severity
		}
		records = append(records, model.RawRecord{
			Provider: model.SourceMock,
			Source:   model.MockSource,
			Kind:     model.KindUpdate,
			Fields:   fields,
		})
	}
	return records
}

// RawPosts returns count raw post records for dctx
func (g *Generator) RawPosts(dctx model.DisasterContext, count int) []model.RawRecord {
	tag, location := subject(dctx)
	now := g.clock.Now().UTC()
	seed := dctx.Fingerprint()

	records := make([]model.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		tpl := postTemplates[i%len(postTemplates)]
		records = append(records, model.RawRecord{
			Provider: model.SourceMock,
			Source:   model.MockSource,
			Kind:     model.KindPost,
			Fields: map[string]any{
				"id":         uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s#%d", seed, i))).String(),
				"content":    fmt.Sprintf(tpl, tag, location, slug(tag)),
				"author":     fmt.Sprintf("mock_user_%d", i+1),
				"created_at": now.Add(-time.Duration(i) * 30 * time.Minute).Format(time.RFC3339),
				"likes":      (count - i) * 7,
				"shares":     (count - i) * 3,
				"replies":    count - i,
				"verified":   i%3 == 0,
			},
		})
	}
	return records
}

// Updates returns count normalized synthetic updates
func (g *Generator) Updates(dctx model.DisasterContext, count int) []model.Update {
	updates := g.normalizer.Updates(g.RawUpdates(dctx, count))
	for i := range updates {
		updates[i].Synthetic = true
	}
	return updates
}

// Posts returns count normalized synthetic posts
func (g *Generator) Posts(ctx context.Context, dctx model.DisasterContext, count int) []model.Post {
	return g.normalizer.Posts(ctx, g.RawPosts(dctx, count))
}

func subject(dctx model.DisasterContext) (tag, location string) {
	tag = strings.ToLower(dctx.PrimaryTag())
	location = strings.TrimSpace(dctx.LocationName)
	if location == "" {
		location = "the affected area"
	}
	return tag, location
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// slug makes a tag safe for URLs and hashtags.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "disaster"
	}
	return b.String()
}
