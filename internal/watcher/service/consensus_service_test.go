package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/evaluator"
	"golang-trade-sentry/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	name      string
	weight    float64
	score     *dto.EvaluatorScore
	err       error
	delay     time.Duration
	ignoreCtx bool
}

func (s *stubEvaluator) Name() string    { return s.name }
func (s *stubEvaluator) Weight() float64 { return s.weight }

func (s *stubEvaluator) Score(ctx context.Context, _ *dto.EvaluationContext) (*dto.EvaluatorScore, error) {
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return s.score, s.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func testEvent() *entity.AlertEvent {
	return &entity.AlertEvent{ID: 42, PositionID: 7, SourceID: 1, Kind: entity.AlertEventNew}
}

func TestNewConsensusService_Validation(t *testing.T) {
	log := newTestLogger(t)

	_, err := NewConsensusService(nil, time.Second, log)
	assert.Error(t, err)

	_, err = NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "a", weight: 0},
	}, time.Second, log)
	assert.Error(t, err)

	_, err = NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "a", weight: -0.5},
		&stubEvaluator{name: "b", weight: 1},
	}, time.Second, log)
	assert.Error(t, err)
}

func TestConsensusEvaluate_WeightedAverage(t *testing.T) {
	svc, err := NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "a", weight: 0.5, score: &dto.EvaluatorScore{Value: 80}},
		&stubEvaluator{name: "b", weight: 0.5, score: &dto.EvaluatorScore{Value: 60}},
	}, time.Second, newTestLogger(t))
	require.NoError(t, err)

	eval := svc.Evaluate(context.Background(), testEvent(), &dto.EvaluationContext{})

	assert.Equal(t, 70, eval.ConsensusScore)
	assert.Equal(t, entity.RecommendationBuy, eval.Recommendation)
	assert.Equal(t, uint(42), eval.AlertEventID)
}

func TestConsensusEvaluate_RedistributesFailedWeight(t *testing.T) {
	// One evaluator fails; its weight spreads proportionally over the
	// successes: (90*0.5 + 70*0.2) / 0.7 = 84.29 -> 84 -> BUY.
	svc, err := NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "momentum", weight: 0.5, score: &dto.EvaluatorScore{Value: 90}},
		&stubEvaluator{name: "gemini", weight: 0.3, err: fmt.Errorf("upstream timeout")},
		&stubEvaluator{name: "news", weight: 0.2, score: &dto.EvaluatorScore{Value: 70}},
	}, time.Second, newTestLogger(t))
	require.NoError(t, err)

	eval := svc.Evaluate(context.Background(), testEvent(), &dto.EvaluationContext{})

	assert.Equal(t, 84, eval.ConsensusScore)
	assert.Equal(t, entity.RecommendationBuy, eval.Recommendation)

	var scores map[string]*int
	require.NoError(t, json.Unmarshal(eval.Scores, &scores))
	assert.Nil(t, scores["gemini"])
	require.NotNil(t, scores["momentum"])
	assert.Equal(t, 90, *scores["momentum"])
	require.NotNil(t, scores["news"])
	assert.Equal(t, 70, *scores["news"])

	assert.Contains(t, eval.Rationale, "gemini: upstream timeout")
}

func TestConsensusEvaluate_AllFailedFallback(t *testing.T) {
	svc, err := NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "a", weight: 0.6, err: fmt.Errorf("boom")},
		&stubEvaluator{name: "b", weight: 0.4, err: fmt.Errorf("bust")},
	}, time.Second, newTestLogger(t))
	require.NoError(t, err)

	eval := svc.Evaluate(context.Background(), testEvent(), &dto.EvaluationContext{})

	assert.Equal(t, 0, eval.ConsensusScore)
	assert.Equal(t, entity.RecommendationAvoid, eval.Recommendation)
	assert.Contains(t, eval.Rationale, "all evaluators failed")
	assert.Contains(t, eval.Rationale, "a: boom")
	assert.Contains(t, eval.Rationale, "b: bust")
}

func TestConsensusEvaluate_SlowEvaluatorCountsAsFailure(t *testing.T) {
	svc, err := NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "fast", weight: 0.5, score: &dto.EvaluatorScore{Value: 80}},
		&stubEvaluator{name: "slow", weight: 0.5, score: &dto.EvaluatorScore{Value: 20}, delay: 500 * time.Millisecond},
	}, 20*time.Millisecond, newTestLogger(t))
	require.NoError(t, err)

	eval := svc.Evaluate(context.Background(), testEvent(), &dto.EvaluationContext{})

	// The slow evaluator's score must not leak into the consensus.
	assert.Equal(t, 80, eval.ConsensusScore)

	var scores map[string]*int
	require.NoError(t, json.Unmarshal(eval.Scores, &scores))
	assert.Nil(t, scores["slow"])
}

func TestConsensusEvaluate_StuckEvaluatorDoesNotStall(t *testing.T) {
	// An evaluator that never checks its context must still be abandoned
	// once the budget runs out.
	svc, err := NewConsensusService([]evaluator.Evaluator{
		&stubEvaluator{name: "fast", weight: 0.5, score: &dto.EvaluatorScore{Value: 80}},
		&stubEvaluator{name: "stuck", weight: 0.5, score: &dto.EvaluatorScore{Value: 10}, delay: 400 * time.Millisecond, ignoreCtx: true},
	}, 20*time.Millisecond, newTestLogger(t))
	require.NoError(t, err)

	started := time.Now()
	eval := svc.Evaluate(context.Background(), testEvent(), &dto.EvaluationContext{})
	elapsed := time.Since(started)

	assert.Less(t, elapsed, 300*time.Millisecond, "evaluation stalled behind a stuck evaluator")
	assert.Equal(t, 80, eval.ConsensusScore)

	var scores map[string]*int
	require.NoError(t, json.Unmarshal(eval.Scores, &scores))
	assert.Nil(t, scores["stuck"])
	assert.Contains(t, eval.Rationale, "stuck: evaluator did not return")
}

func TestRecommendationFor_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		want  entity.Recommendation
	}{
		{100, entity.RecommendationStrongBuy},
		{85, entity.RecommendationStrongBuy},
		{84, entity.RecommendationBuy},
		{70, entity.RecommendationBuy},
		{69, entity.RecommendationHold},
		{55, entity.RecommendationHold},
		{54, entity.RecommendationAvoid},
		{0, entity.RecommendationAvoid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendationFor(tt.score), "score %d", tt.score)
	}
}
