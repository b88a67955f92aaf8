package model

import (
	"sort"
	"strings"
	"time"
)

// Config is the complete crisisfeed configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Keywords    KeywordsConfig    `yaml:"keywords" mapstructure:"keywords"`
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Geocoding   GeocodingConfig   `yaml:"geocoding" mapstructure:"geocoding"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Kafka       KafkaConfig       `yaml:"kafka" mapstructure:"kafka"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls outbound requests made by adapters
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SourcesConfig lists providers, their endpoints and whether they are enabled
type SourcesConfig struct {
	Official  []string       `yaml:"official" mapstructure:"official"`
	Social    []string       `yaml:"social" mapstructure:"social"`
	NWS       EndpointConfig `yaml:"nws" mapstructure:"nws"`
	FEMA      EndpointConfig `yaml:"fema" mapstructure:"fema"`
	ReliefWeb EndpointConfig `yaml:"reliefweb" mapstructure:"reliefweb"`
	RedCross  EndpointConfig `yaml:"redcross" mapstructure:"redcross"`
	Twitter   EndpointConfig `yaml:"twitter" mapstructure:"twitter"`
	Bluesky   EndpointConfig `yaml:"bluesky" mapstructure:"bluesky"`
	Scrape    []ScrapeSource `yaml:"scrape,omitempty" mapstructure:"scrape"`
}

// EndpointConfig configures one provider
type EndpointConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Token             string        `yaml:"-" mapstructure:"token"` // credentials come from env
	AppName           string        `yaml:"app_name,omitempty" mapstructure:"app_name"`
	Timeout           time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst,omitempty" mapstructure:"burst"`
	MaxResults        int           `yaml:"max_results,omitempty" mapstructure:"max_results"`
}

// ScrapeSource is a web page scraped with an extraction template
type ScrapeSource struct {
	ID       string         `yaml:"id" mapstructure:"id"`
	Name     string         `yaml:"name" mapstructure:"name"`
	URL      string         `yaml:"url" mapstructure:"url"`
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Template ScrapeTemplate `yaml:"template" mapstructure:"template"`
}

// ScrapeTemplate holds the selectors used to pull items out of a page.
// Selectors support "tag", ".class", "#id" and "tag.class".
type ScrapeTemplate struct {
	Container string `yaml:"container" mapstructure:"container"`
	Title     string `yaml:"title" mapstructure:"title"`
	Link      string `yaml:"link" mapstructure:"link"`
	Date      string `yaml:"date" mapstructure:"date"`
	Summary   string `yaml:"summary,omitempty" mapstructure:"summary"`
}

// KeywordsConfig holds keyword lists used for queries and classification
type KeywordsConfig struct {
	Disaster []string `yaml:"disaster" mapstructure:"disaster"`
	Urgent   []string `yaml:"urgent" mapstructure:"urgent"`
}

// AggregationConfig holds per-call defaults
type AggregationConfig struct {
	MaxResults      int `yaml:"max_results" mapstructure:"max_results"`
	TimeWindowHours int `yaml:"time_window_hours" mapstructure:"time_window_hours"`
	FallbackCount   int `yaml:"fallback_count" mapstructure:"fallback_count"`
}

// ScoringConfig exposes the relevance weights. The defaults are a starting
// point, not a calibrated model.
type ScoringConfig struct {
	UpdateTagWeight      float64 `yaml:"update_tag_weight" mapstructure:"update_tag_weight"`
	UpdateLocationWeight float64 `yaml:"update_location_weight" mapstructure:"update_location_weight"`
	UpdateRecentDay      float64 `yaml:"update_recent_day" mapstructure:"update_recent_day"`
	UpdateRecentTwoDays  float64 `yaml:"update_recent_two_days" mapstructure:"update_recent_two_days"`
	PriorityWeight       float64 `yaml:"priority_weight" mapstructure:"priority_weight"`

	PostTagWeight       float64 `yaml:"post_tag_weight" mapstructure:"post_tag_weight"`
	PostLocationWeight  float64 `yaml:"post_location_weight" mapstructure:"post_location_weight"`
	PostRecentDay       float64 `yaml:"post_recent_day" mapstructure:"post_recent_day"`
	PostRecentTwoDays   float64 `yaml:"post_recent_two_days" mapstructure:"post_recent_two_days"`
	UrgentWeight        float64 `yaml:"urgent_weight" mapstructure:"urgent_weight"`
	EngagementLow       int     `yaml:"engagement_low" mapstructure:"engagement_low"`
	EngagementHigh      int     `yaml:"engagement_high" mapstructure:"engagement_high"`
	EngagementWeight    float64 `yaml:"engagement_weight" mapstructure:"engagement_weight"`
	VerifiedWeight      float64 `yaml:"verified_weight" mapstructure:"verified_weight"`
	MinLocationFragment int     `yaml:"min_location_fragment" mapstructure:"min_location_fragment"`
}

// CacheConfig selects the cache backend and TTL per data class
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend    string        `yaml:"backend" mapstructure:"backend"` // memory, disk, layered, redis
	Dir        string        `yaml:"dir,omitempty" mapstructure:"dir"`
	RedisURL   string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	UpdatesTTL time.Duration `yaml:"updates_ttl" mapstructure:"updates_ttl"`
	PostsTTL   time.Duration `yaml:"posts_ttl" mapstructure:"posts_ttl"`
	GeocodeTTL time.Duration `yaml:"geocode_ttl" mapstructure:"geocode_ttl"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"` // concurrent adapter fetches per call
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// GeocodingConfig configures the geocoding collaborator
type GeocodingConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// NullIslandRadius rejects results within this many degrees of (0, 0).
	NullIslandRadius float64 `yaml:"null_island_radius" mapstructure:"null_island_radius"`
}

// LLMConfig configures the optional keyword extraction collaborator
type LLMConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"`
	Model    string        `yaml:"model" mapstructure:"model"`
	APIKey   string        `yaml:"-" mapstructure:"api_key"`
	BaseURL  string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// KafkaConfig configures result publishing
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" mapstructure:"brokers"`
	Topic   string   `yaml:"topic,omitempty" mapstructure:"topic"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Source tokens
const (
	SourceNWS       = "nws"
	SourceFEMA      = "fema"
	SourceReliefWeb = "reliefweb"
	SourceRedCross  = "redcross"
	SourceTwitter   = "twitter"
	SourceBluesky   = "bluesky"
	SourceMock      = "mock"
)

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       12 * time.Second,
			UserAgent:     "crisisfeed/0.3 (+https://github.com/ppiankov/crisisfeed)",
			MaxBodyBytes:  4_000_000,
			MaxRetries:    2,
			RespectRobots: true,
		},
		Sources: SourcesConfig{
			Official:  []string{SourceNWS, SourceFEMA, SourceReliefWeb, SourceRedCross},
			Social:    []string{SourceBluesky, SourceTwitter},
			NWS:       EndpointConfig{Enabled: true, BaseURL: "https://api.weather.gov", Timeout: 10 * time.Second},
			FEMA:      EndpointConfig{Enabled: true, BaseURL: "https://www.fema.gov/api/open", Timeout: 15 * time.Second, MaxResults: 50},
			ReliefWeb: EndpointConfig{Enabled: true, BaseURL: "https://api.reliefweb.int/v1", AppName: "crisisfeed", Timeout: 15 * time.Second, MaxResults: 30},
			RedCross:  EndpointConfig{Enabled: true, BaseURL: "https://www.redcross.org/about-us/news-and-events/press-release.html", Timeout: 15 * time.Second},
			Twitter:   EndpointConfig{Enabled: false, BaseURL: "https://api.twitter.com/2", Timeout: 10 * time.Second, RequestsPerSecond: 0.2, Burst: 1, MaxResults: 50},
			Bluesky:   EndpointConfig{Enabled: true, BaseURL: "https://public.api.bsky.app/xrpc", Timeout: 10 * time.Second, RequestsPerSecond: 1, Burst: 2, MaxResults: 50},
		},
		Keywords: KeywordsConfig{
			Disaster: []string{
				"earthquake", "flood", "hurricane", "tornado", "wildfire", "fire",
				"tsunami", "storm", "landslide", "evacuation", "emergency", "disaster",
			},
			Urgent: []string{
				"urgent", "emergency", "help", "sos", "trapped", "stranded",
				"injured", "rescue", "immediately", "critical", "need water", "need food",
			},
		},
		Aggregation: AggregationConfig{
			MaxResults:      50,
			TimeWindowHours: 72,
			FallbackCount:   5,
		},
		Scoring: DefaultScoring(),
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			UpdatesTTL: 30 * time.Minute,
			PostsTTL:   10 * time.Minute,
			GeocodeTTL: 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      16,
			BatchWorkers: 4,
		},
		Geocoding: GeocodingConfig{
			Enabled:          false,
			BaseURL:          "https://nominatim.openstreetmap.org",
			Timeout:          10 * time.Second,
			NullIslandRadius: 0.5,
		},
		LLM: LLMConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultScoring returns the documented default weights
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		UpdateTagWeight:      0.3,
		UpdateLocationWeight: 0.4,
		UpdateRecentDay:      0.2,
		UpdateRecentTwoDays:  0.1,
		PriorityWeight:       0.1,

		PostTagWeight:       0.2,
		PostLocationWeight:  0.2,
		PostRecentDay:       0.1,
		PostRecentTwoDays:   0.05,
		UrgentWeight:        0.3,
		EngagementLow:       10,
		EngagementHigh:      50,
		EngagementWeight:    0.1,
		VerifiedWeight:      0.1,
		MinLocationFragment: 3,
	}
}

// EnabledOfficialSources returns the official source tokens that are listed
// and enabled, plus any enabled scrape sources.
func (c *Config) EnabledOfficialSources() []string {
	var out []string
	for _, token := range c.Sources.Official {
		token = strings.ToLower(strings.TrimSpace(token))
		if ep, ok := c.Sources.endpoint(token); ok && ep.Enabled {
			out = append(out, token)
		}
	}
	for _, s := range c.Sources.Scrape {
		if s.Enabled && s.ID != "" {
			out = append(out, strings.ToLower(s.ID))
		}
	}
	return dedupeSorted(out)
}

// EnabledSocialSources returns the social source tokens that are listed and enabled.
func (c *Config) EnabledSocialSources() []string {
	var out []string
	for _, token := range c.Sources.Social {
		token = strings.ToLower(strings.TrimSpace(token))
		if ep, ok := c.Sources.endpoint(token); ok && ep.Enabled {
			out = append(out, token)
		}
	}
	return dedupeSorted(out)
}

func (s SourcesConfig) endpoint(token string) (EndpointConfig, bool) {
	switch token {
	case SourceNWS:
		return s.NWS, true
	case SourceFEMA:
		return s.FEMA, true
	case SourceReliefWeb:
		return s.ReliefWeb, true
	case SourceRedCross:
		return s.RedCross, true
	case SourceTwitter:
		return s.Twitter, true
	case SourceBluesky:
		return s.Bluesky, true
	case SourceMock:
		return EndpointConfig{Enabled: true}, true
	}
	return EndpointConfig{}, false
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
