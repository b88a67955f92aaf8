// Package normalize maps raw provider records onto the canonical Update and
// Post schemas and labels them with the classify rule tables.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/classify"
	"github.com/ppiankov/crisisfeed/internal/model"
)

var (
	ErrMissingTitle  = errors.New("missing title")
	ErrMissingAuthor = errors.New("missing author")
	ErrMissingID     = errors.New("missing id")
	ErrWrongKind     = errors.New("unexpected record kind")
)

// KeywordExtractor returns extra keywords found in text. It is optional and
// best-effort: errors are logged and ignored.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}

// Normalizer converts raw records. It is safe for concurrent use.
type Normalizer struct {
	keywords  []string
	urgency   *classify.UrgencyDetector
	extractor KeywordExtractor
	logger    *slog.Logger
}

// New creates a Normalizer from the configured keyword lists
func New(cfg model.KeywordsConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		keywords: cfg.Disaster,
		urgency:  classify.NewUrgencyDetector(cfg.Urgent),
		logger:   logger,
	}
}

// enrichWorkers bounds concurrent extractor calls within one batch
const enrichWorkers = 4

// WithExtractor returns a copy of n that enriches live posts with e. The
// receiver is left unchanged.
func (n *Normalizer) WithExtractor(e KeywordExtractor) *Normalizer {
	c := *n
	c.extractor = e
	return &c
}

// Update normalizes a single raw update
func (n *Normalizer) Update(raw model.RawRecord) (model.Update, error) {
	if raw.Kind != "" && raw.Kind != model.KindUpdate {
		return model.Update{}, adapters.ParseFailure(raw.Provider, fmt.Errorf("%w: %s", ErrWrongKind, raw.Kind))
	}

	title := pickStr(raw.Fields, titleKeys...)
	if title == "" {
		return model.Update{}, adapters.ParseFailure(raw.Provider, ErrMissingTitle)
	}
	content := pickStr(raw.Fields, contentKeys...)

	source := raw.Source
	if source == "" {
		source = raw.Provider
	}

	var priority int
	if severity := pickStr(raw.Fields, "severity"); severity != "" {
		priority = classify.SeverityPriority(severity)
	} else {
		priority = classify.Priority(title, content)
	}

	return model.Update{
		Title:         title,
		Content:       content,
		URL:           model.StringPtr(pickStr(raw.Fields, urlKeys...)),
		Source:        source,
		PublishedAt:   adapters.ParseDate(pickStr(raw.Fields, dateKeys...)),
		UpdateType:    classify.UpdateType(title, content),
		PriorityLevel: model.ClampPriority(priority),
		Synthetic:     raw.Provider == model.SourceMock,
	}, nil
}

// Post normalizes a single raw social post
func (n *Normalizer) Post(ctx context.Context, raw model.RawRecord) (model.Post, error) {
	if raw.Kind != "" && raw.Kind != model.KindPost {
		return model.Post{}, adapters.ParseFailure(raw.Provider, fmt.Errorf("%w: %s", ErrWrongKind, raw.Kind))
	}

	author := pickStr(raw.Fields, authorKeys...)
	if author == "" {
		return model.Post{}, adapters.ParseFailure(raw.Provider, ErrMissingAuthor)
	}
	id := pickStr(raw.Fields, idKeys...)
	if id == "" {
		return model.Post{}, adapters.ParseFailure(raw.Provider, ErrMissingID)
	}
	content := pickStr(raw.Fields, contentKeys...)

	var created time.Time
	if ts := adapters.ParseDate(pickStr(raw.Fields, dateKeys...)); ts != nil {
		created = *ts
	}

	return model.Post{
		ID:        id,
		Content:   content,
		Author:    author,
		CreatedAt: created,
		Platform:  platformOf(raw.Provider),
		Metrics: model.Metrics{
			Likes:   pickInt(raw.Fields, "likes", "like_count", "likeCount"),
			Shares:  pickInt(raw.Fields, "shares", "retweets", "reposts", "repostCount"),
			Replies: pickInt(raw.Fields, "replies", "reply_count", "replyCount"),
		},
		Verified:       pickBool(raw.Fields, "verified"),
		IsUrgent:       n.urgency.IsUrgent(content),
		Keywords:       n.keywordsFor(ctx, content, raw.Provider != model.SourceMock),
		Classification: classify.PostClassification(content),
	}, nil
}

// Updates normalizes a batch, dropping and logging records that fail.
func (n *Normalizer) Updates(raws []model.RawRecord) []model.Update {
	out := make([]model.Update, 0, len(raws))
	for _, raw := range raws {
		u, err := n.Update(raw)
		if err != nil {
			n.logger.Warn("dropping malformed record", "source", raw.Provider, "error", err)
			continue
		}
		out = append(out, u)
	}
	return out
}

// Posts normalizes a batch, dropping and logging records that fail. With an
// extractor configured, posts are normalized concurrently and enrichment
// stops once ctx is done.
func (n *Normalizer) Posts(ctx context.Context, raws []model.RawRecord) []model.Post {
	posts := make([]model.Post, len(raws))
	errs := make([]error, len(raws))

	if n.extractor == nil {
		for i, raw := range raws {
			posts[i], errs[i] = n.Post(ctx, raw)
		}
	} else {
		var wg sync.WaitGroup
		semaphore := make(chan struct{}, enrichWorkers)
		for i, raw := range raws {
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
				}
				posts[i], errs[i] = n.Post(ctx, raw)
			}()
		}
		wg.Wait()
	}

	out := make([]model.Post, 0, len(raws))
	for i, raw := range raws {
		if errs[i] != nil {
			n.logger.Warn("dropping malformed record", "source", raw.Provider, "error", errs[i])
			continue
		}
		out = append(out, posts[i])
	}
	return out
}

func (n *Normalizer) keywordsFor(ctx context.Context, content string, enrich bool) []string {
	keywords := classify.MatchKeywords(content, n.keywords)
	keywords = appendUnique(keywords, hashtags(content)...)

	if !enrich || n.extractor == nil || content == "" || ctx.Err() != nil {
		return keywords
	}
	extra, err := n.extract(ctx, content)
	if err != nil {
		n.logger.Debug("keyword extraction failed", "error", err)
		return keywords
	}
	return appendUnique(keywords, extra...)
}

// extract abandons the extractor once ctx is done, even if it ignores ctx
func (n *Normalizer) extract(ctx context.Context, content string) ([]string, error) {
	type result struct {
		keywords []string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		keywords, err := n.extractor.ExtractKeywords(ctx, content)
		done <- result{keywords, err}
	}()
	select {
	case r := <-done:
		return r.keywords, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func platformOf(provider string) model.Platform {
	switch strings.ToLower(provider) {
	case model.SourceTwitter:
		return model.PlatformTwitter
	case model.SourceBluesky:
		return model.PlatformBluesky
	default:
		return model.PlatformMock
	}
}

// hashtags returns lower-cased hashtags without the leading '#'.
func hashtags(content string) []string {
	var tags []string
	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		tag := strings.ToLower(strings.TrimRight(word[1:], ".,!?;:"))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
