package evaluator

import (
	"context"
	"fmt"
	"strings"

	"golang-trade-sentry/internal/watcher/dto"
)

// MomentumEvaluator scores a new position from the market snapshot: recent
// price momentum in the direction of the trade raises the score, elevated
// volatility lowers it.
type MomentumEvaluator struct {
	weight float64
}

// NewMomentumEvaluator creates a momentum evaluator with the given weight.
func NewMomentumEvaluator(weight float64) *MomentumEvaluator {
	return &MomentumEvaluator{weight: weight}
}

func (e *MomentumEvaluator) Name() string    { return "momentum" }
func (e *MomentumEvaluator) Weight() float64 { return e.weight }

func (e *MomentumEvaluator) Score(_ context.Context, evalCtx *dto.EvaluationContext) (*dto.EvaluatorScore, error) {
	market := evalCtx.Market
	if market == nil {
		return nil, fmt.Errorf("no market snapshot for %s", evalCtx.Position.Symbol)
	}

	score := 50.0

	// Momentum aligned with the trade direction is a positive signal.
	change := market.ChangePercent
	bearish := isBearish(evalCtx.Position.Strategy, evalCtx.Position.Direction)
	if bearish {
		change = -change
	}
	switch {
	case change > 5:
		score += 20
	case change > 1:
		score += change * 4
	case change < -5:
		score -= 20
	case change < -1:
		score += change * 4
	}

	// Heavy volume behind the move adds conviction.
	if market.Volume > 1_000_000 && change > 0 {
		score += 10
	}

	// Volatility above 60 (annualized %) prices in too much uncertainty.
	if market.Volatility > 60 {
		score -= (market.Volatility - 60) / 2
	}

	result := &dto.EvaluatorScore{
		Value: clampScore(int(score + 0.5)),
		Rationale: fmt.Sprintf("%.2f%% move on volume %d, volatility %.1f",
			market.ChangePercent, market.Volume, market.Volatility),
	}
	if market.Volatility > 60 {
		result.Risk = "elevated volatility"
	} else if change < 0 {
		result.Risk = "momentum against position direction"
	}
	return result, nil
}

func isBearish(strategy, direction string) bool {
	s := strings.ToUpper(strategy)
	if strings.Contains(s, "PUT") || strings.HasSuffix(s, "P") {
		return !strings.EqualFold(direction, "sell")
	}
	return strings.EqualFold(direction, "sell")
}
