package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"playlistimport/internal/core"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

func initConfig() {
	envFile := ".env"
	if err := gotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
		}
	}

	viper.SetEnvPrefix("PLAYLISTIMPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if v := viper.GetInt("concurrency_limit"); v > 0 {
		cfg.Concurrency.ConcurrencyLimit = v
	}
	if v := viper.GetInt("batch_size"); v > 0 {
		cfg.Concurrency.BatchSize = v
	}
	if viper.IsSet("cache_enabled") {
		cfg.Concurrency.CacheEnabled = viper.GetBool("cache_enabled")
	}

	if v := viper.GetFloat64("title_weight"); v > 0 {
		cfg.Matching.TitleWeight = v
	}
	if v := viper.GetFloat64("artist_weight"); v > 0 {
		cfg.Matching.ArtistWeight = v
	}
	if v := viper.GetFloat64("bracket_weight"); viper.IsSet("bracket_weight") {
		cfg.Matching.BracketWeight = v
	}
	if v := viper.GetFloat64("keyword_bonus"); viper.IsSet("keyword_bonus") {
		cfg.Matching.KeywordBonus = v
	}
	if v := viper.GetFloat64("match_threshold"); v > 0 {
		cfg.Matching.MatchThreshold = v
	}
	if v := viper.GetFloat64("low_confidence_threshold"); viper.IsSet("low_confidence_threshold") {
		cfg.Matching.LowConfidenceThreshold = v
	}
	if v := viper.GetFloat64("artist_exact_match_floor"); viper.IsSet("artist_exact_match_floor") {
		cfg.Matching.ArtistExactMatchFloor = v
	}

	cfg.Catalog.ClientID = viper.GetString("spotipy_client_id")
	cfg.Catalog.ClientSecret = viper.GetString("spotipy_client_secret")
	cfg.Catalog.RedirectURL = viper.GetString("spotipy_redirect_uri")
	if cfg.Catalog.RedirectURL == "" {
		cfg.Catalog.RedirectURL = "http://127.0.0.1:8080/callback"
	}
	if v := viper.GetString("token_path"); v != "" {
		cfg.Catalog.TokenPath = v
	}
	if v := viper.GetInt("spotify_search_limit"); v > 0 {
		cfg.Catalog.SearchLimit = v
	}
	if v := viper.GetInt("api_max_retries"); viper.IsSet("api_max_retries") {
		cfg.Catalog.MaxRetries = v
	}
	if v := viper.GetFloat64("api_retry_base_delay_seconds"); v > 0 {
		cfg.Catalog.RetryBaseDelaySeconds = v
	}
	if v := viper.GetFloat64("api_retry_max_delay_seconds"); v > 0 {
		cfg.Catalog.RetryMaxDelaySeconds = v
	}
	if v := viper.GetInt("api_total_timeout_per_call_seconds"); v > 0 {
		cfg.Catalog.TotalTimeoutPerCallSeconds = v
	}

	if v := viper.GetString("server_host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server_port"); v > 0 {
		cfg.Server.Port = v
	}

	if v := viper.GetString("log_level"); v != "" {
		cfg.Log.Level = strings.ToUpper(v)
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		zapLevel = zapcore.DebugLevel
	case "WARNING":
		zapLevel = zapcore.WarnLevel
	case "ERROR":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return builtLogger
}
