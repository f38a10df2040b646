package dto

import (
	"time"

	"golang-trade-sentry/internal/entity"
)

// MarketSnapshot is the enrichment payload for one symbol. The pipeline
// treats it as opaque context for the evaluators.
type MarketSnapshot struct {
	Symbol        string  `json:"symbol"`
	MarketPrice   float64 `json:"market_price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Volatility    float64 `json:"volatility"`
	Sector        string  `json:"sector"`
}

// NewsHeadline is one recent headline mentioning the symbol.
type NewsHeadline struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"published_at"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

// EvaluationContext bundles everything an evaluator may look at for one
// newly opened position.
type EvaluationContext struct {
	Position  entity.Position `json:"position"`
	Record    TradeRecord     `json:"record"`
	Market    *MarketSnapshot `json:"market,omitempty"`
	Headlines []NewsHeadline  `json:"headlines,omitempty"`
}

// EvaluatorScore is one evaluator's verdict.
type EvaluatorScore struct {
	Value     int    `json:"value"`
	Rationale string `json:"rationale"`
	Risk      string `json:"risk,omitempty"`
}
