package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"

	"gorm.io/gorm"
)

// NotificationQueueRepository defines data operations for queued
// notifications. Items are never deleted; terminal rows stay as the send
// audit log.
type NotificationQueueRepository interface {
	Create(ctx context.Context, item *entity.NotificationItem) error
	Update(ctx context.Context, item *entity.NotificationItem) error
	FindByID(ctx context.Context, id uint) (*entity.NotificationItem, error)
	Get(ctx context.Context, param dto.GetQueueParam) ([]entity.NotificationItem, error)
	FindPendingDue(ctx context.Context, now time.Time, limit int) ([]entity.NotificationItem, error)
	RequeueDueRateLimited(ctx context.Context, now time.Time) (int64, error)
}

// NewNotificationQueueRepository creates a new GORM-based queue repository.
func NewNotificationQueueRepository(db *gorm.DB) NotificationQueueRepository {
	return &notificationQueueRepository{db: db}
}

type notificationQueueRepository struct {
	db *gorm.DB
}

func (r *notificationQueueRepository) Create(ctx context.Context, item *entity.NotificationItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *notificationQueueRepository) Update(ctx context.Context, item *entity.NotificationItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *notificationQueueRepository) FindByID(ctx context.Context, id uint) (*entity.NotificationItem, error) {
	var item entity.NotificationItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *notificationQueueRepository) Get(ctx context.Context, param dto.GetQueueParam) ([]entity.NotificationItem, error) {
	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, param.Statuses)
	}

	q := r.db.WithContext(ctx).Order("priority, created_at, id")
	if len(qFilter) > 0 {
		q = q.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}
	if param.Limit > 0 {
		q = q.Limit(param.Limit)
	}

	var items []entity.NotificationItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification queue: %w", err)
	}
	return items, nil
}

// FindPendingDue returns pending items eligible for an attempt now, served
// strictly by priority then FIFO within a tier.
func (r *notificationQueueRepository) FindPendingDue(ctx context.Context, now time.Time, limit int) ([]entity.NotificationItem, error) {
	var items []entity.NotificationItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", entity.NotificationStatusPending, now).
		Order("priority, created_at, id").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RequeueDueRateLimited flips rate_limited items whose cool-down elapsed
// back to pending so the next drain can serve them.
func (r *notificationQueueRepository) RequeueDueRateLimited(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.NotificationItem{}).
		Where("status = ? AND next_attempt_at <= ?", entity.NotificationStatusRateLimited, now).
		Update("status", entity.NotificationStatusPending)
	return res.RowsAffected, res.Error
}
