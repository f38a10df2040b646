package evaluator

import (
	"context"
	"fmt"
	"strings"

	"golang-trade-sentry/internal/watcher/dto"
)

var (
	positiveWords = []string{"beat", "upgrade", "surge", "record", "growth", "raise", "strong", "bullish", "rally"}
	negativeWords = []string{"miss", "downgrade", "plunge", "lawsuit", "recall", "cut", "weak", "bearish", "selloff", "investigation"}
)

// NewsEvaluator scores a new position from recent headline sentiment. No
// headlines is a neutral signal, not a failure.
type NewsEvaluator struct {
	weight float64
}

// NewNewsEvaluator creates a news sentiment evaluator with the given weight.
func NewNewsEvaluator(weight float64) *NewsEvaluator {
	return &NewsEvaluator{weight: weight}
}

func (e *NewsEvaluator) Name() string    { return "news" }
func (e *NewsEvaluator) Weight() float64 { return e.weight }

func (e *NewsEvaluator) Score(_ context.Context, evalCtx *dto.EvaluationContext) (*dto.EvaluatorScore, error) {
	if len(evalCtx.Headlines) == 0 {
		return &dto.EvaluatorScore{
			Value:     50,
			Rationale: "no recent headlines",
		}, nil
	}

	positives, negatives := 0, 0
	for _, headline := range evalCtx.Headlines {
		text := strings.ToLower(headline.Title + " " + headline.Excerpt)
		for _, w := range positiveWords {
			if strings.Contains(text, w) {
				positives++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(text, w) {
				negatives++
			}
		}
	}

	// Invert sentiment for bearish positions: bad news helps a put.
	if isBearish(evalCtx.Position.Strategy, evalCtx.Position.Direction) {
		positives, negatives = negatives, positives
	}

	score := 50 + (positives-negatives)*8

	result := &dto.EvaluatorScore{
		Value: clampScore(score),
		Rationale: fmt.Sprintf("%d headlines, %d positive vs %d negative signals",
			len(evalCtx.Headlines), positives, negatives),
	}
	if negatives > positives {
		result.Risk = "negative news flow"
	}
	return result, nil
}
