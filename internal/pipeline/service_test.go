package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisisfeed/internal/adapters"
	"github.com/ppiankov/crisisfeed/internal/mock"
	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/normalize"
	"github.com/ppiankov/crisisfeed/internal/worker"
)

type recordingPublisher struct {
	services []string
	counts   []int
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, service string, _ model.DisasterContext, _ any, count int, _ bool) error {
	p.services = append(p.services, service)
	p.counts = append(p.counts, count)
	return p.err
}

func offlineConfig() *model.Config {
	cfg := model.DefaultConfig()
	for _, ep := range []*model.EndpointConfig{
		&cfg.Sources.NWS, &cfg.Sources.FEMA, &cfg.Sources.ReliefWeb,
		&cfg.Sources.RedCross, &cfg.Sources.Twitter, &cfg.Sources.Bluesky,
	} {
		ep.Enabled = false
	}
	return cfg
}

func TestNew_OfflineFallsBackToMock(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(offlineConfig(), logger, nil)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	pub := &recordingPublisher{}
	svc.WithPublisher(pub)
	ctx := context.Background()

	updates, err := svc.AggregateUpdates(ctx, houston, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, updates.Records)
	assert.True(t, updates.Records[0].Synthetic)

	posts, err := svc.AggregatePosts(ctx, houston, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, posts.Records)
	assert.Equal(t, model.PlatformMock, posts.Records[0].Platform)

	again, err := svc.AggregatePosts(ctx, houston, Options{})
	require.NoError(t, err)
	assert.True(t, again.FromCache)

	assert.Equal(t, []string{ServiceUpdates, ServicePosts, ServicePosts}, pub.services)

	n, err := svc.Invalidate(ctx, ServicePosts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	svc, err := New(offlineConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	svc.WithPublisher(&recordingPublisher{err: errors.New("broker down")})

	res, err := svc.AggregateUpdates(context.Background(), houston, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Records)
}

func TestNew_CacheDisabled(t *testing.T) {
	cfg := offlineConfig()
	cfg.Cache.Enabled = false

	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, svc.Memo)

	res, err := svc.AggregateUpdates(context.Background(), houston, Options{})
	require.NoError(t, err)
	assert.False(t, res.FromCache)

	n, err := svc.Invalidate(context.Background(), ServiceUpdates)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_BadConfig(t *testing.T) {
	cfg := offlineConfig()
	cfg.Cache.Backend = "memcached"
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)

	cfg = offlineConfig()
	cfg.LLM.Provider = "bogus"
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRegistries(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Sources.Twitter.Enabled = true
	cfg.Sources.FEMA.Enabled = false
	cfg.Sources.Scrape = []model.ScrapeSource{
		{ID: "county-oem", URL: "https://example.org/news", Enabled: true},
		{ID: "disabled", URL: "https://example.org/x"},
	}

	fetcher := adapters.NewFetcher(cfg.HTTP)
	gen := mock.NewGenerator(normalize.New(cfg.Keywords, nil), nil)

	official := NewOfficialRegistry(cfg, fetcher, nil, gen)
	assert.Equal(t, []string{"county-oem", "mock", "nws", "redcross", "reliefweb"}, official.Names())

	social := NewSocialRegistry(cfg, fetcher, worker.NewLimiter(1, 1), gen)
	assert.Equal(t, []string{"bluesky", "mock", "twitter"}, social.Names())

	m, err := social.Lookup("mock")
	require.NoError(t, err)
	assert.Equal(t, model.KindPost, m.Kind())
}

func TestEnabledSourcesAreDefaults(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Sources.RedCross.Enabled = false

	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fema", "nws", "reliefweb"}, svc.Updates.Sources())
	assert.Equal(t, []string{"bluesky"}, svc.Posts.Sources())
}
