package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// RateLimiter delays calls to quota-bound providers
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// TwitterAdapter queries the X/Twitter v2 recent search endpoint.
type TwitterAdapter struct {
	fetcher *Fetcher
	limiter RateLimiter
	cfg     model.EndpointConfig
}

// NewTwitterAdapter creates a new recent-search adapter. limiter may be nil.
func NewTwitterAdapter(fetcher *Fetcher, limiter RateLimiter, cfg model.EndpointConfig) *TwitterAdapter {
	return &TwitterAdapter{fetcher: fetcher, limiter: limiter, cfg: cfg}
}

func (a *TwitterAdapter) Name() string           { return model.SourceTwitter }
func (a *TwitterAdapter) DisplayName() string    { return "X (Twitter)" }
func (a *TwitterAdapter) Kind() model.RecordKind { return model.KindPost }
func (a *TwitterAdapter) Timeout() time.Duration { return adapterTimeout(a.cfg.Timeout) }

type twitterResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Verified bool   `json:"verified"`
		} `json:"users"`
	} `json:"includes"`
}

// Fetch runs one recent search for the context terms
func (a *TwitterAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	if a.cfg.Token == "" {
		return nil, NotConfigured(a.Name())
	}
	terms := searchTerms(req)
	if len(terms) == 0 {
		return nil, nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, a.Name()); err != nil {
			return nil, Classify(ctx, a.Name(), err)
		}
	}

	// The v2 API accepts 10..100 results per page.
	limit := 100
	if a.cfg.MaxResults > 0 {
		limit = clampInt(a.cfg.MaxResults, 10, 100)
	}

	params := url.Values{
		"query":        {buildTwitterQuery(terms)},
		"max_results":  {strconv.Itoa(limit)},
		"tweet.fields": {"created_at,public_metrics,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"username,verified"},
	}
	// recent search only covers the last seven days
	if window := req.TimeWindow; window > 0 && window < 7*24*time.Hour {
		params.Set("start_time", req.WindowStart(window).Format(time.RFC3339))
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/tweets/search/recent?" + params.Encode()
	header := http.Header{"Authorization": {"Bearer " + a.cfg.Token}}

	var resp twitterResponse
	if err := a.fetcher.FetchJSON(ctx, a.Name(), endpoint, header, &resp); err != nil {
		return nil, err
	}

	type author struct {
		username string
		verified bool
	}
	authors := make(map[string]author, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		authors[u.ID] = author{username: u.Username, verified: u.Verified}
	}

	records := make([]model.RawRecord, 0, len(resp.Data))
	for _, tweet := range resp.Data {
		who := authors[tweet.AuthorID]
		name := who.username
		if name == "" {
			name = tweet.AuthorID
		}
		records = append(records, model.RawRecord{
			Provider: a.Name(),
			Source:   a.DisplayName(),
			Kind:     model.KindPost,
			Fields: map[string]any{
				"id":         tweet.ID,
				"content":    tweet.Text,
				"author":     name,
				"created_at": tweet.CreatedAt,
				"likes":      tweet.PublicMetrics.LikeCount,
				"shares":     tweet.PublicMetrics.RetweetCount,
				"replies":    tweet.PublicMetrics.ReplyCount,
				"verified":   who.verified,
			},
		})
	}
	return limitRecords(records, limit), nil
}

// buildTwitterQuery ORs the terms together and drops retweets.
func buildTwitterQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.ContainsAny(t, " \t") {
			t = fmt.Sprintf("%q", t)
		}
		quoted = append(quoted, t)
	}
	return "(" + strings.Join(quoted, " OR ") + ") -is:retweet"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
