package repository

import (
	"context"

	"golang-trade-sentry/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionRepository defines data operations for tracked positions. The
// differ runs it inside a transaction via WithTx so one source's cycle
// commits atomically.
type PositionRepository interface {
	WithTx(tx *gorm.DB) PositionRepository
	FindOpenBySourceForUpdate(ctx context.Context, sourceID uint) ([]entity.Position, error)
	FindByID(ctx context.Context, id uint) (*entity.Position, error)
	Create(ctx context.Context, position *entity.Position) error
	Update(ctx context.Context, position *entity.Position) error
}

// NewPositionRepository creates a new GORM-based position repository.
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

type positionRepository struct {
	db *gorm.DB
}

func (r *positionRepository) WithTx(tx *gorm.DB) PositionRepository {
	return &positionRepository{db: tx}
}

// FindOpenBySourceForUpdate locks the source's open positions for the
// duration of the surrounding transaction. SKIP LOCKED lets a competing
// cycle for the same source skip instead of deadlocking; the skipped cycle
// reports contention and retries next interval.
func (r *positionRepository) FindOpenBySourceForUpdate(ctx context.Context, sourceID uint) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("source_id = ? AND status = ?", sourceID, entity.PositionStatusOpen).
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) FindByID(ctx context.Context, id uint) (*entity.Position, error) {
	var position entity.Position
	if err := r.db.WithContext(ctx).First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) Create(ctx context.Context, position *entity.Position) error {
	return r.db.WithContext(ctx).Create(position).Error
}

func (r *positionRepository) Update(ctx context.Context, position *entity.Position) error {
	return r.db.WithContext(ctx).Save(position).Error
}
