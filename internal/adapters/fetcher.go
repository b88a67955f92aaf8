package adapters

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/util"
)

// fetchSleepFunc waits between retries (injectable for tests)
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetcher performs outbound HTTP requests for all adapters
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
}

// NewFetcher creates a new Fetcher with the given configuration. Per-request
// deadlines come from the caller's context; the client timeout is a backstop.
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}

	transport := &http.Transport{
		Proxy:               util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		maxRetries: cfg.MaxRetries,
	}
}

// UserAgent returns the configured User-Agent
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// FetchResult contains a fetched body and metadata
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Fetch performs a single GET request
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, header http.Header) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, connection errors)
// with exponential backoff, stopping early when ctx is done.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string, header http.Header) (*FetchResult, error) {
	attempts := f.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
			backoff *= 2
		}

		result, err := f.Fetch(ctx, rawURL, header)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// FetchJSON fetches rawURL and decodes the JSON body into v. Decode errors are
// reported as parse failures for source.
func (f *Fetcher) FetchJSON(ctx context.Context, source, rawURL string, header http.Header, v any) error {
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}

	result, err := f.FetchWithRetry(ctx, rawURL, header)
	if err != nil {
		return Classify(ctx, source, err)
	}
	if err := json.Unmarshal(result.Body, v); err != nil {
		return ParseFailure(source, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "read body") {
		return false
	}
	for _, marker := range []string{"connection refused", "connection reset", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
