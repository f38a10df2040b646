package evaluator

import (
	"context"

	"golang-trade-sentry/internal/watcher/dto"
)

// Evaluator is one independent scoring function contributing to consensus.
// Implementations must treat the context deadline as their time budget; the
// consensus engine counts a timeout as a failure for that cycle only.
type Evaluator interface {
	Name() string
	Weight() float64
	Score(ctx context.Context, evalCtx *dto.EvaluationContext) (*dto.EvaluatorScore, error)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
