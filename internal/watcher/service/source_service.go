package service

import (
	"context"
	"fmt"
	"strings"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/logger"
)

// SourceService manages the set of monitored trader feeds.
type SourceService interface {
	Create(ctx context.Context, req *dto.CreateSourceRequest) (*entity.Source, error)
	GetAll(ctx context.Context) ([]entity.Source, error)
	GetByID(ctx context.Context, id uint) (*entity.Source, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

// NewSourceService creates a new source service.
func NewSourceService(sourceRepo repository.SourceRepository, log *logger.Logger) SourceService {
	return &sourceService{sourceRepo: sourceRepo, logger: log}
}

type sourceService struct {
	sourceRepo repository.SourceRepository
	logger     *logger.Logger
}

func (s *sourceService) Create(ctx context.Context, req *dto.CreateSourceRequest) (*entity.Source, error) {
	name := strings.TrimSpace(req.Name)
	feedURL := strings.TrimSpace(req.FeedURL)
	if name == "" || feedURL == "" {
		return nil, fmt.Errorf("name and feed_url are required")
	}

	source := &entity.Source{
		Name:     name,
		FeedURL:  feedURL,
		IsActive: true,
	}
	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	s.logger.Info("Source registered",
		logger.IntField("source_id", int(source.ID)),
		logger.StringField("name", source.Name))
	return source, nil
}

func (s *sourceService) GetAll(ctx context.Context) ([]entity.Source, error) {
	return s.sourceRepo.FindAll(ctx)
}

func (s *sourceService) GetByID(ctx context.Context, id uint) (*entity.Source, error) {
	return s.sourceRepo.FindByID(ctx, id)
}

func (s *sourceService) SetActive(ctx context.Context, id uint, active bool) error {
	if _, err := s.sourceRepo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("source %d not found: %w", id, err)
	}
	return s.sourceRepo.SetActive(ctx, id, active)
}
