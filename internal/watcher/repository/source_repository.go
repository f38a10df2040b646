package repository

import (
	"context"
	"time"

	"golang-trade-sentry/internal/entity"

	"gorm.io/gorm"
)

// SourceRepository defines data operations for monitored sources.
type SourceRepository interface {
	Create(ctx context.Context, source *entity.Source) error
	FindByID(ctx context.Context, id uint) (*entity.Source, error)
	FindAll(ctx context.Context) ([]entity.Source, error)
	FindActive(ctx context.Context) ([]entity.Source, error)
	SetActive(ctx context.Context, id uint, active bool) error
	RecordPoll(ctx context.Context, id uint, recordCount int, polledAt time.Time) error
}

// NewSourceRepository creates a new GORM-based source repository.
func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &sourceRepository{db: db}
}

type sourceRepository struct {
	db *gorm.DB
}

func (r *sourceRepository) Create(ctx context.Context, source *entity.Source) error {
	return r.db.WithContext(ctx).Create(source).Error
}

func (r *sourceRepository) FindByID(ctx context.Context, id uint) (*entity.Source, error) {
	var source entity.Source
	if err := r.db.WithContext(ctx).First(&source, id).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *sourceRepository) FindAll(ctx context.Context) ([]entity.Source, error) {
	var sources []entity.Source
	if err := r.db.WithContext(ctx).Order("id").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *sourceRepository) FindActive(ctx context.Context) ([]entity.Source, error) {
	var sources []entity.Source
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// SetActive soft-deactivates or reactivates a source. Sources are never hard
// deleted.
func (r *sourceRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.db.WithContext(ctx).Model(&entity.Source{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *sourceRepository) RecordPoll(ctx context.Context, id uint, recordCount int, polledAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_polled_at": polledAt,
			"total_records":  gorm.Expr("total_records + ?", recordCount),
		}).Error
}
