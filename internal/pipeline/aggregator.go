package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/cache"
	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/observability"
	"github.com/ppiankov/crisisfeed/internal/score"
	"github.com/ppiankov/crisisfeed/internal/worker"
)

// Options are the per-call aggregation settings. Zero values fall back to
// the configured defaults.
type Options struct {
	Sources         []string `json:"sources,omitempty"`
	MaxResults      int      `json:"maxResults,omitempty"`
	TimeWindowHours int      `json:"timeWindowHours,omitempty"`
}

// Result is what an aggregation call returns
type Result[T model.Record] struct {
	Records   []T  `json:"records"`
	FromCache bool `json:"fromCache"`
}

// Geocoder resolves a free-text location to coordinates. A nil point means
// the location could not be resolved.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (*model.Point, error)
}

// Hooks supply the record-type specific steps of an aggregation
type Hooks[T model.Record] struct {
	Normalize func(ctx context.Context, raws []model.RawRecord) []T
	Score     func(records []T, dctx model.DisasterContext)
	Fallback  func(ctx context.Context, dctx model.DisasterContext, count int) []T
	// Explain is optional
	Explain func(record T, dctx model.DisasterContext) Explanation
}

// Settings configure an Aggregator
type Settings struct {
	Service        string
	DefaultSources []string
	MaxResults     int
	TimeWindow     time.Duration
	FallbackCount  int
	Workers        int
	CacheTTL       time.Duration
	Keywords       []string
}

// Aggregator fans out to adapters, merges, filters, ranks and caches
type Aggregator[T model.Record] struct {
	settings Settings
	registry *adapters.Registry
	hooks    Hooks[T]
	memo     *cache.Memo
	geocoder Geocoder
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAggregator creates an aggregator. memo, geocoder and metrics may be nil.
func NewAggregator[T model.Record](settings Settings, registry *adapters.Registry, hooks Hooks[T],
	memo *cache.Memo, geocoder Geocoder, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Aggregator[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if settings.MaxResults <= 0 {
		settings.MaxResults = 50
	}
	if settings.TimeWindow <= 0 {
		settings.TimeWindow = 72 * time.Hour
	}
	if settings.FallbackCount <= 0 {
		settings.FallbackCount = 5
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = 10 * time.Minute
	}
	return &Aggregator[T]{
		settings: settings,
		registry: registry,
		hooks:    hooks,
		memo:     memo,
		geocoder: geocoder,
		clock:    clock,
		logger:   logger.With("service", settings.Service),
		metrics:  metrics,
	}
}

// Service returns the cache service name, e.g. "updates"
func (a *Aggregator[T]) Service() string {
	return a.settings.Service
}

// Sources returns the source tokens a call without explicit sources uses
func (a *Aggregator[T]) Sources() []string {
	return append([]string(nil), a.settings.DefaultSources...)
}

type call struct {
	sources    []string
	maxResults int
	window     time.Duration
}

func (a *Aggregator[T]) resolve(opts Options) call {
	c := call{
		sources:    normalizeTokens(opts.Sources),
		maxResults: opts.MaxResults,
		window:     time.Duration(opts.TimeWindowHours) * time.Hour,
	}
	if len(c.sources) == 0 {
		c.sources = normalizeTokens(a.settings.DefaultSources)
	}
	if c.maxResults <= 0 {
		c.maxResults = a.settings.MaxResults
	}
	if c.window <= 0 {
		c.window = a.settings.TimeWindow
	}
	return c
}

// CacheKey returns the key a call with dctx and opts is memoized under
func (a *Aggregator[T]) CacheKey(dctx model.DisasterContext, opts Options) string {
	c := a.resolve(opts)
	return cache.Key(a.settings.Service, "aggregate", cache.Compose(
		dctx.Fingerprint(),
		strings.Join(c.sources, ","),
		strconv.Itoa(int(c.window/time.Hour)),
		strconv.Itoa(c.maxResults),
	))
}

// Aggregate returns ranked records for dctx. Adapter failures never surface
// here; an error means the compute step itself failed.
func (a *Aggregator[T]) Aggregate(ctx context.Context, dctx model.DisasterContext, opts Options) (Result[T], error) {
	c := a.resolve(opts)
	compute := func(ctx context.Context) ([]T, error) {
		return a.compute(ctx, dctx, c)
	}

	var (
		records   []T
		fromCache bool
		err       error
	)
	if a.memo != nil {
		records, fromCache, err = cache.GetOrCompute(ctx, a.memo, a.CacheKey(dctx, opts), a.settings.Service, a.settings.CacheTTL, compute)
	} else {
		records, err = compute(ctx)
	}
	if err != nil {
		return Result[T]{}, fmt.Errorf("aggregate %s: %w", a.settings.Service, err)
	}

	a.metrics.Returned(a.settings.Service, len(records))
	return Result[T]{Records: records, FromCache: fromCache}, nil
}

func (a *Aggregator[T]) compute(ctx context.Context, dctx model.DisasterContext, c call) ([]T, error) {
	selected, errs := a.registry.Resolve(c.sources)
	for _, err := range errs {
		a.logger.Warn("source excluded", "error", err)
		a.metrics.ObserveFetch(sourceOf(err), adapters.KindOf(err), 0)
	}

	req := adapters.Request{
		Context:     dctx,
		TimeWindow:  c.window,
		Now:         a.clock.Now(),
		Coordinates: a.coordinates(ctx, dctx),
		Keywords:    a.settings.Keywords,
	}

	var merged []T
	for _, normalized := range a.normalizeAll(ctx, a.fanOut(ctx, selected, req)) {
		merged = append(merged, normalized...)
	}

	// Fallback is decided before window filtering: live records that are all
	// stale still produce an empty result.
	if len(merged) == 0 {
		a.logger.Warn("no live records, using synthetic fallback", "sources", c.sources)
		a.metrics.Fallback(a.settings.Service)
		merged = a.hooks.Fallback(ctx, dctx, a.settings.FallbackCount)
	}

	filtered := a.withinWindow(merged, c.window)
	a.hooks.Score(filtered, dctx)
	ranked := score.Rank(score.Dedup(filtered))
	if len(ranked) > c.maxResults {
		ranked = ranked[:c.maxResults]
	}
	if ranked == nil {
		ranked = []T{}
	}
	return ranked, nil
}

// normalizeAll normalizes each outcome concurrently. Keyword enrichment is
// bounded by the adapter's own timeout so a slow extractor cannot stretch a
// call past the slowest source.
func (a *Aggregator[T]) normalizeAll(ctx context.Context, outcomes []*fetchOutcome) [][]T {
	out := make([][]T, len(outcomes))
	var wg sync.WaitGroup
	for i, outcome := range outcomes {
		if len(outcome.records) == 0 {
			continue
		}
		wg.Go(func() {
			nctx, cancel := context.WithTimeout(ctx, outcome.budget)
			defer cancel()
			out[i] = a.hooks.Normalize(nctx, outcome.records)
			a.metrics.Dropped(outcome.source, len(outcome.records)-len(out[i]))
		})
	}
	wg.Wait()
	return out
}

// withinWindow keeps records published at or after now-window. Records with
// no timestamp are kept since their age is unknown.
func (a *Aggregator[T]) withinWindow(records []T, window time.Duration) []T {
	cutoff := a.clock.Now().Add(-window)
	out := make([]T, 0, len(records))
	for _, r := range records {
		if ts := r.Timestamp(); ts == nil || !ts.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (a *Aggregator[T]) coordinates(ctx context.Context, dctx model.DisasterContext) *model.Point {
	if a.geocoder == nil || strings.TrimSpace(dctx.LocationName) == "" {
		return nil
	}
	point, err := a.geocoder.Geocode(ctx, dctx.LocationName)
	if err != nil {
		a.logger.Warn("geocoding failed", "location", dctx.LocationName, "error", err)
		return nil
	}
	return point
}

type fetchOutcome struct {
	source  string
	records []model.RawRecord
	err     error
	budget  time.Duration
}

func (o *fetchOutcome) GetError() error { return o.err }

// fetchJob runs one adapter under its own deadline
type fetchJob struct {
	adapter adapters.Adapter
	req     adapters.Request
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

func (j *fetchJob) Execute(ctx context.Context) worker.Result {
	name := j.adapter.Name()
	start := j.clock.Now()

	out := fetchWithDeadline(ctx, j.adapter, j.req)
	out.budget = j.adapter.Timeout()
	elapsed := j.clock.Since(start)

	j.metrics.ObserveFetch(name, adapters.KindOf(out.err), elapsed.Seconds())
	if out.err != nil {
		j.logger.Warn("source failed", "source", name, "kind", adapters.KindOf(out.err), "duration", elapsed, "error", out.err)
	} else {
		j.logger.Debug("source fetched", "source", name, "records", len(out.records), "duration", elapsed)
	}
	return out
}

// fetchWithDeadline abandons the adapter once its timeout passes, even if the
// adapter ignores ctx. Panics are reported as source failures.
func fetchWithDeadline(ctx context.Context, adapter adapters.Adapter, req adapters.Request) *fetchOutcome {
	name := adapter.Name()
	ctx, cancel := context.WithTimeout(ctx, adapter.Timeout())
	defer cancel()

	done := make(chan *fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &fetchOutcome{source: name, err: adapters.Unavailable(name, fmt.Errorf("panic: %v", r))}
			}
		}()
		records, err := adapter.Fetch(ctx, req)
		done <- &fetchOutcome{source: name, records: records, err: err}
	}()

	var out *fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = &fetchOutcome{source: name, err: ctx.Err()}
	}
	if out.err != nil {
		out.err = adapters.Classify(ctx, name, out.err)
		out.records = nil
	}
	return out
}

// fanOut runs every adapter concurrently and returns outcomes in adapter
// order. One adapter's failure never cancels the others.
func (a *Aggregator[T]) fanOut(ctx context.Context, selected []adapters.Adapter, req adapters.Request) []*fetchOutcome {
	if len(selected) == 0 {
		return nil
	}

	workers := a.settings.Workers
	if workers <= 0 || workers > len(selected) {
		workers = len(selected)
	}

	jobs := make([]worker.Job, len(selected))
	for i, adapter := range selected {
		jobs[i] = &fetchJob{adapter: adapter, req: req, clock: a.clock, logger: a.logger, metrics: a.metrics}
	}

	results := worker.NewPool(ctx, workers).Run(jobs)
	outcomes := make([]*fetchOutcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r.(*fetchOutcome))
	}
	return outcomes
}

func normalizeTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func sourceOf(err error) string {
	var se *adapters.SourceError
	if errors.As(err, &se) {
		return se.Source
	}
	return "unknown"
}
