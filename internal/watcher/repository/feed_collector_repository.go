package repository

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/logger"
	"golang-trade-sentry/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// FeedCollectorRepository produces the currently-visible trade records for
// one source. The HTML contract: each trade is an element carrying a
// data-trade attribute with its fields in data-* attributes and free text in
// the body.
type FeedCollectorRepository interface {
	Fetch(ctx context.Context, source entity.Source) ([]dto.TradeRecord, error)
}

// NewFeedCollectorRepository creates a new HTML feed collector.
func NewFeedCollectorRepository(log *logger.Logger, requestsPerMinute int, timeout time.Duration) FeedCollectorRepository {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &feedCollectorRepository{
		client:         &http.Client{Timeout: timeout},
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

type feedCollectorRepository struct {
	client         *http.Client
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

func (r *feedCollectorRepository) Fetch(ctx context.Context, source entity.Source) ([]dto.TradeRecord, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "trade-sentry/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", source.FeedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", source.FeedURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed HTML: %w", err)
	}

	capturedAt := utils.TimeNowUTC()
	var records []dto.TradeRecord

	doc.Find("[data-trade]").Each(func(_ int, sel *goquery.Selection) {
		record := dto.TradeRecord{
			Symbol:     strings.ToUpper(strings.TrimSpace(sel.AttrOr("data-symbol", ""))),
			Strategy:   strings.TrimSpace(sel.AttrOr("data-strategy", "")),
			Direction:  strings.ToLower(strings.TrimSpace(sel.AttrOr("data-direction", ""))),
			Notes:      strings.TrimSpace(sel.Text()),
			CapturedAt: capturedAt,
		}

		record.Price = parseFloatAttr(sel, "data-price")
		record.Quantity = parseFloatAttr(sel, "data-quantity")

		if raw, exists := sel.Attr("data-strike"); exists && raw != "" {
			if strike, err := strconv.ParseFloat(raw, 64); err == nil {
				record.Strike = &strike
			} else {
				r.logger.Warn("Unparseable strike in feed record",
					logger.StringField("symbol", record.Symbol),
					logger.StringField("strike", raw))
			}
		}
		if raw, exists := sel.Attr("data-expiry"); exists && raw != "" {
			expiry := strings.TrimSpace(raw)
			record.Expiry = &expiry
		}

		records = append(records, record)
	})

	return records, nil
}

func parseFloatAttr(sel *goquery.Selection, attr string) float64 {
	raw, exists := sel.Attr(attr)
	if !exists {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
