package repository

import (
	"context"

	"golang-trade-sentry/internal/entity"

	"gorm.io/gorm"
)

// AlertEventRepository defines data operations for lifecycle events.
type AlertEventRepository interface {
	WithTx(tx *gorm.DB) AlertEventRepository
	Create(ctx context.Context, event *entity.AlertEvent) error
	FindByID(ctx context.Context, id uint) (*entity.AlertEvent, error)
	FindByPositionID(ctx context.Context, positionID uint) ([]entity.AlertEvent, error)
}

// NewAlertEventRepository creates a new GORM-based alert event repository.
func NewAlertEventRepository(db *gorm.DB) AlertEventRepository {
	return &alertEventRepository{db: db}
}

type alertEventRepository struct {
	db *gorm.DB
}

func (r *alertEventRepository) WithTx(tx *gorm.DB) AlertEventRepository {
	return &alertEventRepository{db: tx}
}

func (r *alertEventRepository) Create(ctx context.Context, event *entity.AlertEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *alertEventRepository) FindByID(ctx context.Context, id uint) (*entity.AlertEvent, error) {
	var event entity.AlertEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *alertEventRepository) FindByPositionID(ctx context.Context, positionID uint) ([]entity.AlertEvent, error) {
	var events []entity.AlertEvent
	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("cycle_at").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
