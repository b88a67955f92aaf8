package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// BlueskyAdapter searches public posts through the AppView XRPC API.
type BlueskyAdapter struct {
	fetcher *Fetcher
	limiter RateLimiter
	cfg     model.EndpointConfig
}

// NewBlueskyAdapter creates a new Bluesky search adapter. limiter may be nil.
func NewBlueskyAdapter(fetcher *Fetcher, limiter RateLimiter, cfg model.EndpointConfig) *BlueskyAdapter {
	return &BlueskyAdapter{fetcher: fetcher, limiter: limiter, cfg: cfg}
}

func (a *BlueskyAdapter) Name() string           { return model.SourceBluesky }
func (a *BlueskyAdapter) DisplayName() string    { return "Bluesky" }
func (a *BlueskyAdapter) Kind() model.RecordKind { return model.KindPost }
func (a *BlueskyAdapter) Timeout() time.Duration { return adapterTimeout(a.cfg.Timeout) }

type blueskyResponse struct {
	Posts []struct {
		URI    string `json:"uri"`
		CID    string `json:"cid"`
		Author struct {
			Handle       string `json:"handle"`
			DisplayName  string `json:"displayName"`
			Verification *struct {
				VerifiedStatus string `json:"verifiedStatus"`
			} `json:"verification,omitempty"`
		} `json:"author"`
		Record struct {
			Text      string `json:"text"`
			CreatedAt string `json:"createdAt"`
		} `json:"record"`
		IndexedAt   string `json:"indexedAt"`
		LikeCount   int    `json:"likeCount"`
		RepostCount int    `json:"repostCount"`
		ReplyCount  int    `json:"replyCount"`
	} `json:"posts"`
}

// Fetch runs app.bsky.feed.searchPosts for the context terms
func (a *BlueskyAdapter) Fetch(ctx context.Context, req Request) ([]model.RawRecord, error) {
	terms := searchTerms(req)
	if len(terms) == 0 {
		return nil, nil
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, a.Name()); err != nil {
			return nil, Classify(ctx, a.Name(), err)
		}
	}

	limit := 100
	if a.cfg.MaxResults > 0 {
		limit = clampInt(a.cfg.MaxResults, 1, 100)
	}

	params := url.Values{
		"q":     {strings.Join(terms, " ")},
		"limit": {strconv.Itoa(limit)},
		"sort":  {"latest"},
	}
	if req.TimeWindow > 0 {
		params.Set("since", req.WindowStart(req.TimeWindow).Format(time.RFC3339))
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/app.bsky.feed.searchPosts?" + params.Encode()
	var header http.Header
	if a.cfg.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + a.cfg.Token}}
	}

	var resp blueskyResponse
	if err := a.fetcher.FetchJSON(ctx, a.Name(), endpoint, header, &resp); err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		created := p.Record.CreatedAt
		if created == "" {
			created = p.IndexedAt
		}
		id := p.CID
		if id == "" {
			id = p.URI
		}
		verified := p.Author.Verification != nil && p.Author.Verification.VerifiedStatus == "valid"
		records = append(records, model.RawRecord{
			Provider: a.Name(),
			Source:   a.DisplayName(),
			Kind:     model.KindPost,
			Fields: map[string]any{
				"id":         id,
				"content":    p.Record.Text,
				"author":     p.Author.Handle,
				"created_at": created,
				"likes":      p.LikeCount,
				"shares":     p.RepostCount,
				"replies":    p.ReplyCount,
				"verified":   verified,
				"url":        postURL(p.Author.Handle, p.URI),
			},
		})
	}
	return limitRecords(records, limit), nil
}

// postURL turns an at:// URI into the public web URL.
func postURL(handle, uri string) string {
	idx := strings.LastIndex(uri, "/")
	if handle == "" || idx < 0 || idx == len(uri)-1 {
		return ""
	}
	return "https://bsky.app/profile/" + handle + "/post/" + uri[idx+1:]
}
