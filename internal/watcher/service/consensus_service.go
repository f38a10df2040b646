package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/evaluator"
	"golang-trade-sentry/pkg/logger"

	"gorm.io/datatypes"
)

// Recommendation thresholds applied to the consensus score. Policy
// constants, not tuning knobs.
const (
	ThresholdStrongBuy = 85
	ThresholdBuy       = 70
	ThresholdHold      = 55
)

// ConsensusService combines independent evaluator scores into one weighted
// Evaluation. It has no side effects; persisting the result is the caller's
// responsibility.
type ConsensusService interface {
	// Evaluate always returns a complete Evaluation, falling back to score
	// 0 / AVOID when every evaluator fails.
	Evaluate(ctx context.Context, event *entity.AlertEvent, evalCtx *dto.EvaluationContext) *entity.Evaluation
}

// NewConsensusService creates a consensus engine over the given evaluators.
// Weights are normalized so they sum to 1; an empty or zero-weight set is a
// configuration error.
func NewConsensusService(evaluators []evaluator.Evaluator, timeout time.Duration, log *logger.Logger) (ConsensusService, error) {
	if len(evaluators) == 0 {
		return nil, fmt.Errorf("at least one evaluator is required")
	}
	var total float64
	for _, e := range evaluators {
		if e.Weight() < 0 {
			return nil, fmt.Errorf("evaluator %s has negative weight", e.Name())
		}
		total += e.Weight()
	}
	if total <= 0 {
		return nil, fmt.Errorf("evaluator weights sum to zero")
	}
	return &consensusService{
		evaluators:  evaluators,
		totalWeight: total,
		timeout:     timeout,
		logger:      log,
	}, nil
}

type consensusService struct {
	evaluators  []evaluator.Evaluator
	totalWeight float64
	timeout     time.Duration
	logger      *logger.Logger
}

type evaluatorOutcome struct {
	name   string
	weight float64
	score  *dto.EvaluatorScore
	err    error
}

func (s *consensusService) Evaluate(ctx context.Context, event *entity.AlertEvent, evalCtx *dto.EvaluationContext) *entity.Evaluation {
	started := time.Now()

	outcomes := s.runEvaluators(ctx, evalCtx)

	evaluation := s.combine(event, outcomes)
	evaluation.DurationMs = time.Since(started).Milliseconds()
	return evaluation
}

// runEvaluators fans out to every evaluator concurrently, each under its own
// timeout. A slow evaluator fails for this cycle; it never stalls the rest.
// Results come back over a channel so an evaluator that ignores its context
// cannot hold the consensus past the timeout either: once the budget plus a
// small grace elapses, the missing evaluators are recorded as failures and
// their goroutines are abandoned.
func (s *consensusService) runEvaluators(ctx context.Context, evalCtx *dto.EvaluationContext) []evaluatorOutcome {
	results := make(chan evaluatorOutcome, len(s.evaluators))

	for _, ev := range s.evaluators {
		ev := ev
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- evaluatorOutcome{
						name:   ev.Name(),
						weight: ev.Weight(),
						err:    fmt.Errorf("evaluator panicked: %v", r),
					}
				}
			}()

			evalCtxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			score, err := ev.Score(evalCtxTimeout, evalCtx)
			if err == nil && evalCtxTimeout.Err() != nil {
				err = evalCtxTimeout.Err()
			}

			results <- evaluatorOutcome{
				name:   ev.Name(),
				weight: ev.Weight(),
				score:  score,
				err:    err,
			}
		}()
	}

	deadline := time.NewTimer(s.timeout + 100*time.Millisecond)
	defer deadline.Stop()

	received := make(map[string]bool, len(s.evaluators))
	outcomes := make([]evaluatorOutcome, 0, len(s.evaluators))

collect:
	for len(outcomes) < len(s.evaluators) {
		select {
		case outcome := <-results:
			received[outcome.name] = true
			outcomes = append(outcomes, outcome)
		case <-deadline.C:
			break collect
		}
	}

	for _, ev := range s.evaluators {
		if received[ev.Name()] {
			continue
		}
		outcomes = append(outcomes, evaluatorOutcome{
			name:   ev.Name(),
			weight: ev.Weight(),
			err:    fmt.Errorf("evaluator did not return within %s", s.timeout),
		})
	}

	for _, outcome := range outcomes {
		if outcome.err != nil {
			s.logger.Warn("Evaluator failed",
				logger.StringField("evaluator", outcome.name),
				logger.ErrorField(outcome.err))
		}
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].name < outcomes[j].name })
	return outcomes
}

func (s *consensusService) combine(event *entity.AlertEvent, outcomes []evaluatorOutcome) *entity.Evaluation {
	rawScores := make(map[string]*int, len(outcomes))
	var (
		successWeight float64
		rationales    []string
		failures      []string
		primaryRisk   string
		riskWeight    float64
	)

	for _, outcome := range outcomes {
		if outcome.err != nil || outcome.score == nil {
			rawScores[outcome.name] = nil
			reason := "no score"
			if outcome.err != nil {
				reason = outcome.err.Error()
			}
			failures = append(failures, fmt.Sprintf("%s: %s", outcome.name, reason))
			continue
		}
		value := outcome.score.Value
		rawScores[outcome.name] = &value
		successWeight += outcome.weight
		if outcome.score.Rationale != "" {
			rationales = append(rationales, fmt.Sprintf("%s: %s", outcome.name, outcome.score.Rationale))
		}
		// The highest-weighted evaluator that flags a risk names the
		// primary one.
		if outcome.score.Risk != "" && outcome.weight > riskWeight {
			primaryRisk = outcome.score.Risk
			riskWeight = outcome.weight
		}
	}

	scoresJSON, _ := json.Marshal(rawScores)

	if successWeight == 0 {
		return &entity.Evaluation{
			AlertEventID:   event.ID,
			Scores:         datatypes.JSON(scoresJSON),
			ConsensusScore: 0,
			Recommendation: entity.RecommendationAvoid,
			Rationale:      "all evaluators failed: " + strings.Join(failures, "; "),
			PrimaryRisk:    "no usable evaluation signal",
		}
	}

	// Redistribute failed evaluators' weight proportionally among the
	// successes, so one failure does not bias the average toward zero.
	var weighted float64
	for _, outcome := range outcomes {
		if outcome.err != nil || outcome.score == nil {
			continue
		}
		weighted += float64(outcome.score.Value) * (outcome.weight / successWeight)
	}
	consensus := int(math.Round(weighted))

	rationale := strings.Join(rationales, " | ")
	if len(failures) > 0 {
		rationale += " | failed: " + strings.Join(failures, "; ")
	}

	return &entity.Evaluation{
		AlertEventID:   event.ID,
		Scores:         datatypes.JSON(scoresJSON),
		ConsensusScore: consensus,
		Recommendation: RecommendationFor(consensus),
		Rationale:      rationale,
		PrimaryRisk:    primaryRisk,
	}
}

// RecommendationFor maps a consensus score to its discrete recommendation.
func RecommendationFor(score int) entity.Recommendation {
	switch {
	case score >= ThresholdStrongBuy:
		return entity.RecommendationStrongBuy
	case score >= ThresholdBuy:
		return entity.RecommendationBuy
	case score >= ThresholdHold:
		return entity.RecommendationHold
	default:
		return entity.RecommendationAvoid
	}
}
