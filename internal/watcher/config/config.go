package config

import (
	"golang-trade-sentry/pkg/config"
)

// Watcher holds cycle loop configuration.
type Watcher struct {
	// CycleInterval is the fixed poll interval; ignored when CycleCron is set.
	CycleInterval        string `mapstructure:"cycle_interval"`
	CycleCron            string `mapstructure:"cycle_cron"`
	MaxConcurrentSources int    `mapstructure:"max_concurrent_sources"`
	CollectorTimeout     string `mapstructure:"collector_timeout"`
	MaxRequestPerMinute  int    `mapstructure:"max_request_per_minute"`
}

// Evaluators holds consensus engine configuration. Weights are normalized at
// startup; they do not need to sum to exactly 1 in the file.
type Evaluators struct {
	Timeout        string  `mapstructure:"timeout"`
	MomentumWeight float64 `mapstructure:"momentum_weight"`
	NewsWeight     float64 `mapstructure:"news_weight"`
	GeminiWeight   float64 `mapstructure:"gemini_weight"`
}

// Gemini holds Gemini API configuration.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Dispatcher holds notification queue configuration.
type Dispatcher struct {
	NotifyThreshold   int    `mapstructure:"notify_threshold"`
	MaxSendsPerWindow int    `mapstructure:"max_sends_per_window"`
	WindowSize        string `mapstructure:"window_size"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryBackoff      string `mapstructure:"retry_backoff"`
	DrainBatchSize    int    `mapstructure:"drain_batch_size"`
}

// MarketData holds enrichment quote API configuration.
type MarketData struct {
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	CacheTTL            string `mapstructure:"cache_ttl"`
}

// News holds the headline feed configuration. FeedURLTemplate receives the
// symbol via fmt.Sprintf.
type News struct {
	FeedURLTemplate string `mapstructure:"feed_url_template"`
	MaxHeadlines    int    `mapstructure:"max_headlines"`
}

// Config holds the full configuration for the watcher service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Telegram   config.Telegram `mapstructure:"telegram"`
	Watcher    Watcher         `mapstructure:"watcher"`
	Evaluators Evaluators      `mapstructure:"evaluators"`
	Gemini     Gemini          `mapstructure:"gemini"`
	Dispatcher Dispatcher      `mapstructure:"dispatcher"`
	MarketData MarketData      `mapstructure:"market_data"`
	News       News            `mapstructure:"news"`
}

// Load loads the watcher configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
