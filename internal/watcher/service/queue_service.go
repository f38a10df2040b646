package service

import (
	"context"
	"fmt"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/logger"
)

// QueueService exposes the notification queue to operators.
type QueueService interface {
	Get(ctx context.Context, param dto.GetQueueParam) ([]entity.NotificationItem, error)
	Cancel(ctx context.Context, id uint) (*entity.NotificationItem, error)
}

// NewQueueService creates a new queue service.
func NewQueueService(queueRepo repository.NotificationQueueRepository, log *logger.Logger) QueueService {
	return &queueService{queueRepo: queueRepo, logger: log}
}

type queueService struct {
	queueRepo repository.NotificationQueueRepository
	logger    *logger.Logger
}

func (s *queueService) Get(ctx context.Context, param dto.GetQueueParam) ([]entity.NotificationItem, error) {
	return s.queueRepo.Get(ctx, param)
}

// Cancel withdraws an item that has not reached a terminal state yet.
func (s *queueService) Cancel(ctx context.Context, id uint) (*entity.NotificationItem, error) {
	item, err := s.queueRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("notification %d not found: %w", id, err)
	}
	if item.Status.IsTerminal() {
		return nil, fmt.Errorf("notification %d is already %s", id, item.Status)
	}

	item.Status = entity.NotificationStatusCancelled
	if err := s.queueRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to cancel notification %d: %w", id, err)
	}

	s.logger.Info("Notification cancelled", logger.IntField("item_id", int(id)))
	return item, nil
}
