package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/analysis"
	"github.com/ppiankov/crisisfeed/internal/cache"
	"github.com/ppiankov/crisisfeed/internal/classify"
	"github.com/ppiankov/crisisfeed/internal/geo"
	"github.com/ppiankov/crisisfeed/internal/mock"
	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/normalize"
	"github.com/ppiankov/crisisfeed/internal/observability"
	"github.com/ppiankov/crisisfeed/internal/score"
	"github.com/ppiankov/crisisfeed/internal/util"
	"github.com/ppiankov/crisisfeed/internal/worker"
)

// Service names, also used as cache sources
const (
	ServiceUpdates = "updates"
	ServicePosts   = "posts"
)

// Publisher receives every result set an aggregation returns
type Publisher interface {
	Publish(ctx context.Context, service string, dctx model.DisasterContext, records any, count int, fromCache bool) error
}

// NewOfficialRegistry registers the enabled official-update adapters and the
// mock source.
func NewOfficialRegistry(cfg *model.Config, fetcher *adapters.Fetcher, robots *util.RobotsChecker, gen *mock.Generator) *adapters.Registry {
	reg := adapters.NewRegistry()
	src := cfg.Sources

	if src.NWS.Enabled {
		reg.Register(adapters.NewNWSAdapter(fetcher, src.NWS))
	}
	if src.FEMA.Enabled {
		reg.Register(adapters.NewFEMAAdapter(fetcher, src.FEMA))
	}
	if src.ReliefWeb.Enabled {
		reg.Register(adapters.NewReliefWebAdapter(fetcher, src.ReliefWeb))
	}
	if src.RedCross.Enabled {
		reg.Register(adapters.NewRedCrossAdapter(fetcher, robots, src.RedCross))
	}
	for _, s := range src.Scrape {
		if s.Enabled && s.ID != "" {
			reg.RegisterGeneric(adapters.NewGenericAdapter(s, fetcher, robots, cfg.HTTP.Timeout))
		}
	}

	reg.Register(mock.NewAdapter(gen, model.KindUpdate))
	return reg
}

// NewSocialRegistry registers the enabled social adapters and the mock source.
// Each platform gets its own token bucket on limiter.
func NewSocialRegistry(cfg *model.Config, fetcher *adapters.Fetcher, limiter *worker.Limiter, gen *mock.Generator) *adapters.Registry {
	reg := adapters.NewRegistry()
	src := cfg.Sources

	if src.Twitter.Enabled {
		setRate(limiter, model.SourceTwitter, src.Twitter)
		reg.Register(adapters.NewTwitterAdapter(fetcher, limiter, src.Twitter))
	}
	if src.Bluesky.Enabled {
		setRate(limiter, model.SourceBluesky, src.Bluesky)
		reg.Register(adapters.NewBlueskyAdapter(fetcher, limiter, src.Bluesky))
	}

	reg.Register(mock.NewAdapter(gen, model.KindPost))
	return reg
}

func setRate(limiter *worker.Limiter, key string, ep model.EndpointConfig) {
	if ep.RequestsPerSecond > 0 {
		limiter.SetRate(key, ep.RequestsPerSecond, ep.Burst)
	}
}

// Deps are the collaborators shared by both aggregators
type Deps struct {
	Memo     *cache.Memo
	Geocoder Geocoder
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

func settingsFor(cfg *model.Config, service string, sources []string, ttl time.Duration) Settings {
	return Settings{
		Service:        service,
		DefaultSources: sources,
		MaxResults:     cfg.Aggregation.MaxResults,
		TimeWindow:     time.Duration(cfg.Aggregation.TimeWindowHours) * time.Hour,
		FallbackCount:  cfg.Aggregation.FallbackCount,
		Workers:        cfg.Concurrency.Workers,
		CacheTTL:       ttl,
		Keywords:       cfg.Keywords.Disaster,
	}
}

// NewUpdateAggregator builds the official-updates pipeline
func NewUpdateAggregator(cfg *model.Config, reg *adapters.Registry, n *normalize.Normalizer, gen *mock.Generator, deps Deps) *Aggregator[model.Update] {
	scorer := score.NewScorer(cfg.Scoring, deps.Clock)
	hooks := Hooks[model.Update]{
		Normalize: func(_ context.Context, raws []model.RawRecord) []model.Update {
			return n.Updates(raws)
		},
		Score: scorer.ScoreUpdates,
		Fallback: func(_ context.Context, dctx model.DisasterContext, count int) []model.Update {
			return gen.Updates(dctx, count)
		},
		Explain: func(u model.Update, dctx model.DisasterContext) Explanation {
			return Explanation{
				Rule:  classify.UpdateTypes.Explain(u.Title + " " + u.Content),
				Score: scorer.ExplainUpdate(u, dctx),
			}
		},
	}
	settings := settingsFor(cfg, ServiceUpdates, cfg.EnabledOfficialSources(), cfg.Cache.UpdatesTTL)
	return NewAggregator(settings, reg, hooks, deps.Memo, deps.Geocoder, deps.Clock, deps.Logger, deps.Metrics)
}

// NewPostAggregator builds the social-posts pipeline
func NewPostAggregator(cfg *model.Config, reg *adapters.Registry, n *normalize.Normalizer, gen *mock.Generator, deps Deps) *Aggregator[model.Post] {
	scorer := score.NewScorer(cfg.Scoring, deps.Clock)
	hooks := Hooks[model.Post]{
		Normalize: n.Posts,
		Score:     scorer.ScorePosts,
		Fallback:  gen.Posts,
		Explain: func(p model.Post, dctx model.DisasterContext) Explanation {
			return Explanation{
				Rule:  classify.PostClassifications.Explain(p.Content),
				Score: scorer.ExplainPost(p, dctx),
			}
		},
	}
	settings := settingsFor(cfg, ServicePosts, cfg.EnabledSocialSources(), cfg.Cache.PostsTTL)
	return NewAggregator(settings, reg, hooks, deps.Memo, deps.Geocoder, deps.Clock, deps.Logger, deps.Metrics)
}

// Service bundles both pipelines with their shared cache
type Service struct {
	Updates *Aggregator[model.Update]
	Posts   *Aggregator[model.Post]

	// Memo is nil when caching is disabled
	Memo *cache.Memo

	publisher Publisher
	logger    *slog.Logger
	closers   []io.Closer
}

// New wires a Service from configuration. metrics may be nil.
func New(cfg *model.Config, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clock := clockwork.NewRealClock()
	s := &Service{logger: logger}

	fetcher := adapters.NewFetcher(cfg.HTTP)

	var robots *util.RobotsChecker
	if cfg.HTTP.RespectRobots {
		robots = util.NewRobotsChecker(fetcher.UserAgent(), cfg.HTTP.Timeout, time.Hour)
	}

	if cfg.Cache.Enabled {
		store, err := cache.New(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		if c, ok := store.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
		s.Memo = cache.NewMemo(store, clock, logger, metrics)
	}

	var geocoder Geocoder
	if cfg.Geocoding.Enabled {
		var g geo.Geocoder = geo.NewNominatim(fetcher, cfg.Geocoding)
		if s.Memo != nil {
			g = geo.NewCached(g, s.Memo, cfg.Cache.GeocodeTTL)
		}
		geocoder = g
	}

	base := normalize.New(cfg.Keywords, logger)
	extractor, err := analysis.New(cfg.LLM, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("keyword extraction: %w", err)
	}
	n := base
	if extractor != nil {
		logger.Info("keyword extraction enabled", "provider", extractor.Name())
		n = base.WithExtractor(extractor)
	}

	// synthetic records never reach the extractor
	gen := mock.NewGenerator(base, clock)
	deps := Deps{Memo: s.Memo, Geocoder: geocoder, Clock: clock, Logger: logger, Metrics: metrics}

	limiter := worker.NewLimiter(1, 2)
	s.Updates = NewUpdateAggregator(cfg, NewOfficialRegistry(cfg, fetcher, robots, gen), n, gen, deps)
	s.Posts = NewPostAggregator(cfg, NewSocialRegistry(cfg, fetcher, limiter, gen), n, gen, deps)
	return s, nil
}

// WithPublisher makes every aggregation also hand its result to p
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	if c, ok := p.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	return s
}

// AggregateUpdates runs the official-updates pipeline and publishes the result
func (s *Service) AggregateUpdates(ctx context.Context, dctx model.DisasterContext, opts Options) (Result[model.Update], error) {
	res, err := s.Updates.Aggregate(ctx, dctx, opts)
	if err != nil {
		return res, err
	}
	s.publish(ctx, ServiceUpdates, dctx, res.Records, len(res.Records), res.FromCache)
	return res, nil
}

// AggregatePosts runs the social-posts pipeline and publishes the result
func (s *Service) AggregatePosts(ctx context.Context, dctx model.DisasterContext, opts Options) (Result[model.Post], error) {
	res, err := s.Posts.Aggregate(ctx, dctx, opts)
	if err != nil {
		return res, err
	}
	s.publish(ctx, ServicePosts, dctx, res.Records, len(res.Records), res.FromCache)
	return res, nil
}

// Publishing is best effort; a broker outage never fails an aggregation.
func (s *Service) publish(ctx context.Context, service string, dctx model.DisasterContext, records any, count int, fromCache bool) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, service, dctx, records, count, fromCache); err != nil {
		s.logger.Warn("publish failed", "service", service, "error", err)
	}
}

// Invalidate drops cached results produced by source, e.g. "updates".
// It returns the number of entries removed.
func (s *Service) Invalidate(ctx context.Context, source string) (int, error) {
	if s.Memo == nil {
		return 0, nil
	}
	return s.Memo.InvalidateSource(ctx, source)
}

// Close releases the cache connection and publisher
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
