package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ppiankov/crisisfeed/internal/observability"
)

// Entry is the envelope stored for every memoized value
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
	Source    string          `json:"source"`
	HitCount  int             `json:"hit_count"`
}

// Memo wraps a Cache with get-or-compute semantics. Expiry is checked
// lazily against its clock on every read; there is no background sweep.
// Concurrent misses for the same key may both compute.
type Memo struct {
	store   Cache
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMemo creates a Memo over store. A nil clock uses real time.
func NewMemo(store Cache, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Memo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memo{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Lookup returns the live entry for key, incrementing its hit count.
func (m *Memo) Lookup(ctx context.Context, key string) (*Entry, bool) {
	raw, ok := m.store.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		m.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		_ = m.store.Delete(ctx, key)
		return nil, false
	}

	now := m.clock.Now()
	if !now.Before(entry.ExpiresAt) {
		_ = m.store.Delete(ctx, key)
		m.metrics.CacheLookup(entry.Source, "expired")
		return nil, false
	}

	entry.HitCount++
	if err := m.put(ctx, &entry, entry.ExpiresAt.Sub(now)); err != nil {
		m.logger.Debug("cache hit count not persisted", "key", key, "error", err)
	}
	return &entry, true
}

// Store saves value under key until now+ttl. Values that encode to JSON null
// are not stored.
func (m *Memo) Store(ctx context.Context, key, source string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	entry := Entry{
		Key:       key,
		Value:     data,
		ExpiresAt: m.clock.Now().Add(ttl),
		Source:    source,
	}
	return m.put(ctx, &entry, ttl)
}

func (m *Memo) put(ctx context.Context, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return m.store.Set(ctx, entry.Key, data, ttl)
}

// InvalidateSource deletes every entry stored with source and returns how
// many were removed.
func (m *Memo) InvalidateSource(ctx context.Context, source string) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		raw, ok := m.store.Get(ctx, key)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Source != source {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// Clear empties the underlying store
func (m *Memo) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// GetOrCompute returns the cached value for key, or calls compute and stores
// its result for ttl. Compute errors are returned as-is and nothing is
// stored. Failing to store is logged, never returned. The bool reports
// whether the value came from the cache.
func GetOrCompute[T any](ctx context.Context, m *Memo, key, source string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	if entry, ok := m.Lookup(ctx, key); ok {
		var cached T
		err := json.Unmarshal(entry.Value, &cached)
		if err == nil {
			m.metrics.CacheLookup(source, "hit")
			m.logger.Debug("cache hit", "key", key, "hits", entry.HitCount)
			return cached, true, nil
		}
		m.logger.Warn("cached value does not decode, recomputing", "key", key, "error", err)
	}
	m.metrics.CacheLookup(source, "miss")

	value, err := compute(ctx)
	if err != nil {
		return value, false, err
	}

	if err := m.Store(ctx, key, source, value, ttl); err != nil {
		m.logger.Warn("cache store failed", "key", key, "error", err)
	}
	return value, false, nil
}
