package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang-trade-sentry/internal/watcher/config"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/common"
	"golang-trade-sentry/pkg/logger"
	redisPkg "golang-trade-sentry/pkg/redis"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// MarketDataRepository fetches the enrichment snapshot for a symbol. Results
// are cached in-process and mirrored to redis so other consumers can read
// the last known quote.
type MarketDataRepository interface {
	GetSnapshot(ctx context.Context, symbol string) (*dto.MarketSnapshot, error)
}

// NewMarketDataRepository creates a new quote API repository.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger, redisClient *redisPkg.Client) (MarketDataRepository, error) {
	cacheTTL := 2 * time.Minute
	if cfg.MarketData.CacheTTL != "" {
		parsed, err := time.ParseDuration(cfg.MarketData.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid market_data.cache_ttl: %w", err)
		}
		cacheTTL = parsed
	}

	perMinute := cfg.MarketData.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &marketDataRepository{
		cfg:            cfg,
		logger:         log,
		client:         &http.Client{Timeout: 30 * time.Second},
		inmemoryCache:  cache.New(cacheTTL, 2*cacheTTL),
		cacheTTL:       cacheTTL,
		redisClient:    redisClient,
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}, nil
}

type marketDataRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	client         *http.Client
	inmemoryCache  *cache.Cache
	cacheTTL       time.Duration
	redisClient    *redisPkg.Client
	requestLimiter *rate.Limiter
}

func (r *marketDataRepository) GetSnapshot(ctx context.Context, symbol string) (*dto.MarketSnapshot, error) {
	if cached, found := r.inmemoryCache.Get(symbol); found {
		snapshot := cached.(dto.MarketSnapshot)
		return &snapshot, nil
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s", r.cfg.MarketData.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d for %s", resp.StatusCode, symbol)
	}

	var snapshot dto.MarketSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", symbol, err)
	}
	snapshot.Symbol = symbol

	r.inmemoryCache.Set(symbol, snapshot, cache.DefaultExpiration)
	r.mirrorToRedis(ctx, symbol, &snapshot)

	return &snapshot, nil
}

func (r *marketDataRepository) mirrorToRedis(ctx context.Context, symbol string, snapshot *dto.MarketSnapshot) {
	if r.redisClient == nil {
		return
	}
	key := fmt.Sprintf(common.RedisKeyMarketSnapshot, symbol)
	redisPipe := r.redisClient.Pipeline()
	redisPipe.HSet(ctx, key, map[string]interface{}{
		"price":     snapshot.MarketPrice,
		"change":    snapshot.ChangePercent,
		"volume":    snapshot.Volume,
		"timestamp": time.Now().Unix(),
	})
	redisPipe.Expire(ctx, key, r.cacheTTL+2*time.Minute)
	if _, err := redisPipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to execute Redis pipeline",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}
}
