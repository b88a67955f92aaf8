package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		MaxRetries:   2,
	})
}

func noSleep(t *testing.T) {
	t.Helper()
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { fetchSleepFunc = origSleep })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Expected User-Agent test-agent, got %s", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	result, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(result.Body) != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected body: %s", result.Body)
	}
	if result.ContentType != "text/html" {
		t.Errorf("Unexpected content type: %s", result.ContentType)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()
	noSleep(t)

	result, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(result.Body) != "<html>OK</html>" {
		t.Errorf("Unexpected body: %s", result.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	noSleep(t)

	_, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected StatusError 404, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	noSleep(t)

	_, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL, nil)
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()
	noSleep(t)

	if _, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_StopsOnCancel(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	defer func() { fetchSleepFunc = origSleep }()

	_, err := newTestFetcher().FetchWithRetry(ctx, server.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected JSON Accept header, got %s", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/ok":
			_, _ = fmt.Fprint(w, `{"name":"ok"}`)
		case "/bad":
			_, _ = fmt.Fprint(w, `{not json`)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()
	noSleep(t)
	f := newTestFetcher()

	var v struct{ Name string }
	if err := f.FetchJSON(context.Background(), "test", server.URL+"/ok", nil, &v); err != nil || v.Name != "ok" {
		t.Errorf("FetchJSON = %v, %+v", err, v)
	}

	err := f.FetchJSON(context.Background(), "test", server.URL+"/bad", nil, &v)
	if !errors.Is(err, ErrParseFailure) {
		t.Errorf("Expected parse failure, got %v", err)
	}

	err = f.FetchJSON(context.Background(), "test", server.URL+"/missing", nil, &v)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Expected unavailable, got %v", err)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{StatusCode: 503}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"502", &StatusError{StatusCode: 502}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"403", &StatusError{StatusCode: 403}, false},
		{"connection refused", errors.New("fetch: connection refused"), true},
		{"connection reset", errors.New("fetch: connection reset by peer"), true},
		{"invalid URL", errors.New("create request: invalid URL"), false},
		{"short body", errors.New("read body: unexpected EOF"), false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
