package evaluator

import (
	"context"
	"testing"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newsContext(strategy, direction string, headlines ...dto.NewsHeadline) *dto.EvaluationContext {
	return &dto.EvaluationContext{
		Position:  entity.Position{Symbol: "AAPL", Strategy: strategy, Direction: direction},
		Headlines: headlines,
	}
}

func TestNewsEvaluator_NoHeadlinesIsNeutral(t *testing.T) {
	e := NewNewsEvaluator(0.2)

	score, err := e.Score(context.Background(), newsContext("shares", "buy"))
	require.NoError(t, err)
	assert.Equal(t, 50, score.Value)
	assert.Empty(t, score.Risk)
}

func TestNewsEvaluator_PositiveSentiment(t *testing.T) {
	e := NewNewsEvaluator(0.2)

	score, err := e.Score(context.Background(), newsContext("shares", "buy",
		dto.NewsHeadline{Title: "AAPL earnings beat expectations, analysts upgrade"},
		dto.NewsHeadline{Title: "Record iPhone quarter fuels rally"},
	))
	require.NoError(t, err)

	// beat, upgrade, record, rally -> 4 positives.
	assert.Equal(t, 82, score.Value)
	assert.Empty(t, score.Risk)
}

func TestNewsEvaluator_NegativeSentimentFlagsRisk(t *testing.T) {
	e := NewNewsEvaluator(0.2)

	score, err := e.Score(context.Background(), newsContext("shares", "buy",
		dto.NewsHeadline{Title: "Shares plunge after earnings miss"},
		dto.NewsHeadline{Title: "Analyst downgrade cites weak guidance"},
	))
	require.NoError(t, err)

	assert.Less(t, score.Value, 50)
	assert.Equal(t, "negative news flow", score.Risk)
}

func TestNewsEvaluator_BearishPositionInvertsSentiment(t *testing.T) {
	e := NewNewsEvaluator(0.2)

	// Bad news is good news for a long put.
	score, err := e.Score(context.Background(), newsContext("150P", "buy",
		dto.NewsHeadline{Title: "Shares plunge after earnings miss"},
	))
	require.NoError(t, err)

	assert.Greater(t, score.Value, 50)
	assert.Empty(t, score.Risk)
}
