package core

import (
	"fmt"
	"time"
)

// Default configuration values, per the option table in the tunables specification.
const (
	DefaultConcurrencyLimit           = 8
	DefaultBatchSize                  = 20
	DefaultSpotifySearchLimit         = 3
	DefaultAPIMaxRetries              = 12
	DefaultAPIRetryBaseDelaySeconds   = 3.0
	DefaultAPIRetryMaxDelaySeconds    = 60.0
	DefaultAPITotalTimeoutPerCallSecs = 100
	DefaultTitleWeight                = 0.7
	DefaultArtistWeight               = 0.3
	DefaultBracketWeight              = 0.3
	DefaultKeywordBonus               = 5.0
	DefaultMatchThreshold             = 75.0
	DefaultLowConfidenceThreshold     = 60.0
	DefaultArtistExactMatchFloor      = 80.0
	DefaultServerPort                 = 8080
	DefaultServerTimeoutSeconds       = 10
)

// Config collects every tunable the pipeline reads, grouped by the component that owns it.
type Config struct {
	Concurrency ConcurrencyConfig
	Matching    MatchingConfig
	Catalog     CatalogConfig
	Server      ServerConfig
	Log         LogConfig
}

// ConcurrencyConfig governs the Concurrency Coordinator and Catalog Client fan-out.
type ConcurrencyConfig struct {
	// ConcurrencyLimit bounds the number of in-flight outbound catalog requests.
	ConcurrencyLimit int
	// BatchSize hints the parser's fan-out and sizes the bounded input queue (2x this value).
	BatchSize int
	// CacheEnabled toggles the normalizer's memoization cache.
	CacheEnabled bool
}

// MatchingConfig governs the Matcher's scoring weights and thresholds.
type MatchingConfig struct {
	TitleWeight            float64
	ArtistWeight            float64
	BracketWeight           float64
	KeywordBonus            float64
	MatchThreshold          float64
	LowConfidenceThreshold  float64
	ArtistExactMatchFloor   float64
	// SearchFallbackEnabled defaults to false and is not read anywhere: Client.Search always
	// issues the single title+artist query, and no title-only or artist-only fallback exists.
	SearchFallbackEnabled bool
}

// CatalogConfig governs outbound calls to the external music catalog.
type CatalogConfig struct {
	ClientID                  string
	ClientSecret              string
	RedirectURL                string
	TokenPath                  string
	SearchLimit                int
	MaxRetries                 int
	RetryBaseDelaySeconds      float64
	RetryMaxDelaySeconds       float64
	TotalTimeoutPerCallSeconds int
}

// ServerConfig governs the optional HTTP adapter.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig governs structured logging verbosity.
type LogConfig struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR.
	Level string
}

// DefaultConfig returns a Config populated with the defaults from the tunables table.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: ConcurrencyConfig{
			ConcurrencyLimit: DefaultConcurrencyLimit,
			BatchSize:        DefaultBatchSize,
			CacheEnabled:     true,
		},
		Matching: MatchingConfig{
			TitleWeight:            DefaultTitleWeight,
			ArtistWeight:           DefaultArtistWeight,
			BracketWeight:          DefaultBracketWeight,
			KeywordBonus:           DefaultKeywordBonus,
			MatchThreshold:         DefaultMatchThreshold,
			LowConfidenceThreshold: DefaultLowConfidenceThreshold,
			ArtistExactMatchFloor:  DefaultArtistExactMatchFloor,
			SearchFallbackEnabled:  false,
		},
		Catalog: CatalogConfig{
			TokenPath:                  "./.cache",
			SearchLimit:                DefaultSpotifySearchLimit,
			MaxRetries:                 DefaultAPIMaxRetries,
			RetryBaseDelaySeconds:      DefaultAPIRetryBaseDelaySeconds,
			RetryMaxDelaySeconds:       DefaultAPIRetryMaxDelaySeconds,
			TotalTimeoutPerCallSeconds: DefaultAPITotalTimeoutPerCallSecs,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerTimeoutSeconds * time.Second,
			WriteTimeout: DefaultServerTimeoutSeconds * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Validate fails fast on any configuration invariant violation, per the error-handling design:
// a ConfigurationError is fatal and the process should exit before doing any pipeline work.
func (c *Config) Validate() error {
	m := c.Matching

	if m.LowConfidenceThreshold < 0 || m.LowConfidenceThreshold > m.MatchThreshold {
		return fmt.Errorf("config: LOW_CONFIDENCE_THRESHOLD (%.2f) must be between 0 and MATCH_THRESHOLD (%.2f)",
			m.LowConfidenceThreshold, m.MatchThreshold)
	}
	if m.MatchThreshold > 100 {
		return fmt.Errorf("config: MATCH_THRESHOLD (%.2f) must be <= 100", m.MatchThreshold)
	}
	if diff := m.TitleWeight + m.ArtistWeight - 1.0; diff > 1e-9 || diff < -1e-9 {
		return fmt.Errorf("config: TITLE_WEIGHT (%.2f) + ARTIST_WEIGHT (%.2f) must equal 1", m.TitleWeight, m.ArtistWeight)
	}
	for name, v := range map[string]float64{
		"TITLE_WEIGHT":              m.TitleWeight,
		"ARTIST_WEIGHT":             m.ArtistWeight,
		"BRACKET_WEIGHT":            m.BracketWeight,
		"KEYWORD_BONUS":             m.KeywordBonus,
		"ARTIST_EXACT_MATCH_FLOOR":  m.ArtistExactMatchFloor,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("config: %s (%.2f) must be within [0, 100]", name, v)
		}
	}

	if c.Concurrency.ConcurrencyLimit <= 0 {
		return fmt.Errorf("config: CONCURRENCY_LIMIT must be positive, got %d", c.Concurrency.ConcurrencyLimit)
	}
	if c.Concurrency.BatchSize <= 0 {
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", c.Concurrency.BatchSize)
	}
	if c.Catalog.SearchLimit <= 0 {
		return fmt.Errorf("config: SPOTIFY_SEARCH_LIMIT must be positive, got %d", c.Catalog.SearchLimit)
	}
	if c.Catalog.MaxRetries < 0 {
		return fmt.Errorf("config: API_MAX_RETRIES must be non-negative, got %d", c.Catalog.MaxRetries)
	}
	if c.Catalog.TotalTimeoutPerCallSeconds <= 0 {
		return fmt.Errorf("config: API_TOTAL_TIMEOUT_PER_CALL_SECONDS must be positive, got %d", c.Catalog.TotalTimeoutPerCallSeconds)
	}

	switch c.Log.Level {
	case "DEBUG", "INFO", "WARNING", "ERROR":
	default:
		return fmt.Errorf("config: LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, got %q", c.Log.Level)
	}

	return nil
}
