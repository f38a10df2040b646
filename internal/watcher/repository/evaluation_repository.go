package repository

import (
	"context"

	"golang-trade-sentry/internal/entity"

	"gorm.io/gorm"
)

// EvaluationRepository defines data operations for consensus evaluations.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *entity.Evaluation) error
	FindByID(ctx context.Context, id uint) (*entity.Evaluation, error)
	FindByAlertEventID(ctx context.Context, alertEventID uint) (*entity.Evaluation, error)
}

// NewEvaluationRepository creates a new GORM-based evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *entity.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) FindByID(ctx context.Context, id uint) (*entity.Evaluation, error) {
	var evaluation entity.Evaluation
	if err := r.db.WithContext(ctx).First(&evaluation, id).Error; err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepository) FindByAlertEventID(ctx context.Context, alertEventID uint) (*entity.Evaluation, error) {
	var evaluation entity.Evaluation
	if err := r.db.WithContext(ctx).Where("alert_event_id = ?", alertEventID).First(&evaluation).Error; err != nil {
		return nil, err
	}
	return &evaluation, nil
}
