package service

import (
	"context"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/logger"
)

// EnrichmentService assembles the evaluation context for a newly opened
// position. Enrichment failures degrade the context instead of failing the
// evaluation; evaluators decide what they can do without the missing parts.
type EnrichmentService interface {
	BuildContext(ctx context.Context, position entity.Position, record dto.TradeRecord) *dto.EvaluationContext
}

// NewEnrichmentService creates a new enrichment service.
func NewEnrichmentService(marketDataRepo repository.MarketDataRepository, newsRepo repository.NewsRepository, log *logger.Logger) EnrichmentService {
	return &enrichmentService{
		marketDataRepo: marketDataRepo,
		newsRepo:       newsRepo,
		logger:         log,
	}
}

type enrichmentService struct {
	marketDataRepo repository.MarketDataRepository
	newsRepo       repository.NewsRepository
	logger         *logger.Logger
}

func (s *enrichmentService) BuildContext(ctx context.Context, position entity.Position, record dto.TradeRecord) *dto.EvaluationContext {
	evalCtx := &dto.EvaluationContext{
		Position: position,
		Record:   record,
	}

	snapshot, err := s.marketDataRepo.GetSnapshot(ctx, position.Symbol)
	if err != nil {
		s.logger.Warn("Failed to fetch market snapshot",
			logger.ErrorField(err), logger.StringField("symbol", position.Symbol))
	} else {
		evalCtx.Market = snapshot
	}

	headlines, err := s.newsRepo.GetHeadlines(ctx, position.Symbol)
	if err != nil {
		s.logger.Warn("Failed to fetch headlines",
			logger.ErrorField(err), logger.StringField("symbol", position.Symbol))
	} else {
		evalCtx.Headlines = headlines
	}

	return evalCtx
}
