package service

import (
	"context"
	"fmt"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/logger"
	"golang-trade-sentry/pkg/telegram"
	"golang-trade-sentry/pkg/utils"
)

// DispatcherConfig holds the notification queue policy.
type DispatcherConfig struct {
	// NotifyThreshold is the minimum consensus score worth notifying.
	NotifyThreshold int
	// MaxSendsPerWindow caps sends inside one sliding window.
	MaxSendsPerWindow int
	// WindowSize is the sliding window length.
	WindowSize time.Duration
	// MaxRetries bounds transient-failure retries per item.
	MaxRetries int
	// RetryBackoff delays the next attempt after a transient failure.
	RetryBackoff time.Duration
}

// DispatcherService owns every NotificationItem status transition.
type DispatcherService interface {
	// Enqueue queues the evaluation when it clears the notification
	// threshold. Returns (nil, nil) when it does not qualify.
	Enqueue(ctx context.Context, evaluation *entity.Evaluation) (*entity.NotificationItem, error)
	// DrainPending processes up to batchSize pending items in priority
	// order, honoring the sliding send window.
	DrainPending(ctx context.Context, batchSize int) (*dto.DrainResult, error)
}

// NewDispatcherService creates a new notification dispatcher.
func NewDispatcherService(
	cfg DispatcherConfig,
	queueRepo repository.NotificationQueueRepository,
	rateLimitRepo repository.RateLimitRepository,
	evaluationRepo repository.EvaluationRepository,
	alertEventRepo repository.AlertEventRepository,
	positionRepo repository.PositionRepository,
	notifier telegram.Notifier,
	log *logger.Logger,
) DispatcherService {
	return &dispatcherService{
		cfg:            cfg,
		queueRepo:      queueRepo,
		rateLimitRepo:  rateLimitRepo,
		evaluationRepo: evaluationRepo,
		alertEventRepo: alertEventRepo,
		positionRepo:   positionRepo,
		notifier:       notifier,
		logger:         log,
	}
}

type dispatcherService struct {
	cfg            DispatcherConfig
	queueRepo      repository.NotificationQueueRepository
	rateLimitRepo  repository.RateLimitRepository
	evaluationRepo repository.EvaluationRepository
	alertEventRepo repository.AlertEventRepository
	positionRepo   repository.PositionRepository
	notifier       telegram.Notifier
	logger         *logger.Logger
}

// Qualifies reports whether an evaluation clears the "worth notifying" bar.
func (s *dispatcherService) Qualifies(evaluation *entity.Evaluation) bool {
	if evaluation.ConsensusScore < s.cfg.NotifyThreshold {
		return false
	}
	return evaluation.Recommendation == entity.RecommendationBuy ||
		evaluation.Recommendation == entity.RecommendationStrongBuy
}

func (s *dispatcherService) Enqueue(ctx context.Context, evaluation *entity.Evaluation) (*entity.NotificationItem, error) {
	if !s.Qualifies(evaluation) {
		return nil, nil
	}

	item := &entity.NotificationItem{
		EvaluationID: evaluation.ID,
		// Higher score means lower priority number, served first.
		Priority:   100 - evaluation.ConsensusScore,
		Status:     entity.NotificationStatusPending,
		MaxRetries: s.cfg.MaxRetries,
	}
	if err := s.queueRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	s.logger.Info("Notification enqueued",
		logger.IntField("evaluation_id", int(evaluation.ID)),
		logger.IntField("priority", item.Priority))
	return item, nil
}

func (s *dispatcherService) DrainPending(ctx context.Context, batchSize int) (*dto.DrainResult, error) {
	now := utils.TimeNowUTC()
	result := &dto.DrainResult{}

	if _, err := s.queueRepo.RequeueDueRateLimited(ctx, now); err != nil {
		return nil, fmt.Errorf("failed to requeue rate-limited items: %w", err)
	}

	items, err := s.queueRepo.FindPendingDue(ctx, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending notifications: %w", err)
	}

	for i := range items {
		item := &items[i]
		result.Processed++

		reservedAt := utils.TimeNowUTC()
		ok, retryAt, err := s.rateLimitRepo.Reserve(ctx, s.cfg.MaxSendsPerWindow, s.cfg.WindowSize, reservedAt)
		if err != nil {
			return result, fmt.Errorf("rate limit reservation failed: %w", err)
		}

		if !ok {
			// Window is full. Everything after this item is lower priority
			// and would be blocked too, so defer the whole tail.
			for j := i; j < len(items); j++ {
				deferred := &items[j]
				deferred.Status = entity.NotificationStatusRateLimited
				deferred.NextAttemptAt = utils.ToPointer(retryAt)
				if err := s.queueRepo.Update(ctx, deferred); err != nil {
					return result, fmt.Errorf("failed to mark item %d rate_limited: %w", deferred.ID, err)
				}
				result.RateLimited++
				if j > i {
					result.Processed++
				}
			}
			s.logger.Info("Send window full, deferring remaining batch",
				logger.IntField("deferred", len(items)-i),
				logger.Field("retry_at", retryAt))
			return result, nil
		}

		if err := s.sendItem(ctx, item, reservedAt, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *dispatcherService) sendItem(ctx context.Context, item *entity.NotificationItem, reservedAt time.Time, result *dto.DrainResult) error {
	message, err := s.buildMessage(ctx, item)
	if err != nil {
		// The evaluation chain is unreadable; count it against the retry
		// budget like any other failure and give the slot back.
		s.logger.Error("Failed to build notification message",
			logger.ErrorField(err), logger.IntField("item_id", int(item.ID)))
		if releaseErr := s.rateLimitRepo.Release(ctx, reservedAt); releaseErr != nil {
			s.logger.Error("Failed to release send slot", logger.ErrorField(releaseErr))
		}
		return s.recordFailure(ctx, item, err, result)
	}

	if sendErr := s.notifier.SendMessage(message); sendErr != nil {
		s.logger.Warn("Notification send failed",
			logger.ErrorField(sendErr),
			logger.IntField("item_id", int(item.ID)),
			logger.IntField("retry_count", item.RetryCount))
		if releaseErr := s.rateLimitRepo.Release(ctx, reservedAt); releaseErr != nil {
			s.logger.Error("Failed to release send slot", logger.ErrorField(releaseErr))
		}
		return s.recordFailure(ctx, item, sendErr, result)
	}

	item.Status = entity.NotificationStatusSent
	item.SentAt = utils.ToPointer(reservedAt)
	item.LastError = ""
	if err := s.queueRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to mark item %d sent: %w", item.ID, err)
	}
	result.Sent++
	return nil
}

func (s *dispatcherService) recordFailure(ctx context.Context, item *entity.NotificationItem, cause error, result *dto.DrainResult) error {
	item.RetryCount++
	item.LastError = cause.Error()

	if item.RetryCount >= item.MaxRetries {
		item.Status = entity.NotificationStatusFailed
		if err := s.queueRepo.Update(ctx, item); err != nil {
			return fmt.Errorf("failed to mark item %d failed: %w", item.ID, err)
		}
		result.Failed++
		s.logger.Error("Notification exhausted retry budget",
			logger.IntField("item_id", int(item.ID)),
			logger.IntField("retries", item.RetryCount))
		return nil
	}

	item.Status = entity.NotificationStatusPending
	item.NextAttemptAt = utils.ToPointer(utils.TimeNowUTC().Add(s.cfg.RetryBackoff))
	if err := s.queueRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to reschedule item %d: %w", item.ID, err)
	}
	result.Retried++
	return nil
}

func (s *dispatcherService) buildMessage(ctx context.Context, item *entity.NotificationItem) (string, error) {
	evaluation, err := s.evaluationRepo.FindByID(ctx, item.EvaluationID)
	if err != nil {
		return "", fmt.Errorf("evaluation %d not found: %w", item.EvaluationID, err)
	}
	event, err := s.alertEventRepo.FindByID(ctx, evaluation.AlertEventID)
	if err != nil {
		return "", fmt.Errorf("alert event %d not found: %w", evaluation.AlertEventID, err)
	}
	position, err := s.positionRepo.FindByID(ctx, event.PositionID)
	if err != nil {
		return "", fmt.Errorf("position %d not found: %w", event.PositionID, err)
	}
	return telegram.FormatEvaluationAlert(evaluation, position), nil
}
