package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/config"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/common"
	"golang-trade-sentry/pkg/logger"
	redisPkg "golang-trade-sentry/pkg/redis"
	"golang-trade-sentry/pkg/telegram"
	"golang-trade-sentry/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// OrchestratorService runs the poll-diff-evaluate-dispatch cycle on a fixed
// schedule, with explicit start/stop and a single-shot mode for testing.
type OrchestratorService interface {
	Start() error
	Stop() error
	RunOnce(ctx context.Context) (*dto.CycleStats, error)
	Status() dto.PipelineStatusResponse
}

// NewOrchestratorService creates the cycle orchestrator.
func NewOrchestratorService(
	cfg *config.Config,
	log *logger.Logger,
	sourceRepo repository.SourceRepository,
	collectorRepo repository.FeedCollectorRepository,
	positionRepo repository.PositionRepository,
	evaluationRepo repository.EvaluationRepository,
	differ DifferService,
	enrichment EnrichmentService,
	consensus ConsensusService,
	dispatcher DispatcherService,
	redisClient *redisPkg.Client,
	notifier telegram.Notifier,
) (OrchestratorService, error) {
	interval := 150 * time.Second
	if cfg.Watcher.CycleInterval != "" {
		parsed, err := time.ParseDuration(cfg.Watcher.CycleInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid watcher.cycle_interval: %w", err)
		}
		interval = parsed
	}

	var schedule cron.Schedule
	if cfg.Watcher.CycleCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		parsed, err := parser.Parse(cfg.Watcher.CycleCron)
		if err != nil {
			return nil, fmt.Errorf("invalid watcher.cycle_cron: %w", err)
		}
		schedule = parsed
	}

	collectorTimeout := 60 * time.Second
	if cfg.Watcher.CollectorTimeout != "" {
		parsed, err := time.ParseDuration(cfg.Watcher.CollectorTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid watcher.collector_timeout: %w", err)
		}
		collectorTimeout = parsed
	}

	maxConcurrent := cfg.Watcher.MaxConcurrentSources
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	batchSize := cfg.Dispatcher.DrainBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	return &orchestratorService{
		cfg:              cfg,
		logger:           log,
		sourceRepo:       sourceRepo,
		collectorRepo:    collectorRepo,
		positionRepo:     positionRepo,
		evaluationRepo:   evaluationRepo,
		differ:           differ,
		enrichment:       enrichment,
		consensus:        consensus,
		dispatcher:       dispatcher,
		redisClient:      redisClient,
		notifier:         notifier,
		interval:         interval,
		schedule:         schedule,
		collectorTimeout: collectorTimeout,
		maxConcurrent:    maxConcurrent,
		drainBatchSize:   batchSize,
	}, nil
}

type orchestratorService struct {
	cfg              *config.Config
	logger           *logger.Logger
	sourceRepo       repository.SourceRepository
	collectorRepo    repository.FeedCollectorRepository
	positionRepo     repository.PositionRepository
	evaluationRepo   repository.EvaluationRepository
	differ           DifferService
	enrichment       EnrichmentService
	consensus        ConsensusService
	dispatcher       DispatcherService
	redisClient      *redisPkg.Client
	notifier         telegram.Notifier
	interval         time.Duration
	schedule         cron.Schedule
	collectorTimeout time.Duration
	maxConcurrent    int
	drainBatchSize   int

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	lastStats *dto.CycleStats
}

func (s *orchestratorService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("pipeline already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	utils.GoSafe(func() { s.loop(ctx) })
	s.logger.Info("Pipeline started")
	return nil
}

func (s *orchestratorService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("pipeline not running")
	}
	s.cancel()
	s.running = false
	s.logger.Info("Pipeline stopped")
	return nil
}

func (s *orchestratorService) Status() dto.PipelineStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dto.PipelineStatusResponse{
		Running:   s.running,
		LastCycle: s.lastStats,
	}
}

func (s *orchestratorService) loop(ctx context.Context) {
	for {
		wait := s.interval
		if s.schedule != nil {
			wait = time.Until(s.schedule.Next(time.Now()))
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Cycle loop stopping")
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Cycle failed", logger.ErrorField(err))
			}
		}
	}
}

// RunOnce executes one full cycle for every active source. A failure on one
// source is counted and logged, never fatal to the rest.
func (s *orchestratorService) RunOnce(ctx context.Context) (*dto.CycleStats, error) {
	stats := &dto.CycleStats{StartedAt: utils.TimeNowUTC()}

	sources, err := s.sourceRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.maxConcurrent)
	)

	for _, source := range sources {
		wg.Add(1)
		src := source
		utils.GoSafe(func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cycleStats, err := s.processSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.SourcesFailed++
				s.logger.Error("Source cycle failed",
					logger.ErrorField(err),
					logger.IntField("source_id", int(src.ID)),
					logger.StringField("source", src.Name))
				s.notifySourceFailure(src, err)
				return
			}
			stats.SourcesPolled++
			stats.NewPositions += cycleStats.NewPositions
			stats.UpdatedPositions += cycleStats.UpdatedPositions
			stats.ClosedPositions += cycleStats.ClosedPositions
			stats.Evaluations += cycleStats.Evaluations
			stats.Enqueued += cycleStats.Enqueued
		})
	}
	wg.Wait()

	drain, err := s.dispatcher.DrainPending(ctx, s.drainBatchSize)
	if err != nil {
		s.logger.Error("Queue drain failed", logger.ErrorField(err))
	} else {
		stats.Sent = drain.Sent
		stats.RateLimited = drain.RateLimited
		stats.FailedSends = drain.Failed
	}

	stats.FinishedAt = utils.TimeNowUTC()

	s.mu.Lock()
	s.lastStats = stats
	s.mu.Unlock()

	s.logger.Info("Cycle completed",
		logger.IntField("sources_polled", stats.SourcesPolled),
		logger.IntField("sources_failed", stats.SourcesFailed),
		logger.IntField("new", stats.NewPositions),
		logger.IntField("updated", stats.UpdatedPositions),
		logger.IntField("closed", stats.ClosedPositions),
		logger.IntField("sent", stats.Sent))

	return stats, nil
}

func (s *orchestratorService) processSource(ctx context.Context, source entity.Source) (*dto.CycleStats, error) {
	collectCtx, cancel := context.WithTimeout(ctx, s.collectorTimeout)
	defer cancel()

	records, err := s.collectorRepo.Fetch(collectCtx, source)
	if err != nil {
		return nil, fmt.Errorf("collector failed: %w", err)
	}

	diff, err := s.differ.ProcessCycle(ctx, source.ID, records)
	if err != nil {
		return nil, err
	}

	stats := &dto.CycleStats{
		NewPositions:     len(diff.New),
		UpdatedPositions: len(diff.Updated),
		ClosedPositions:  len(diff.Closed),
	}

	s.publishEvents(ctx, diff)

	for i := range diff.New {
		event := &diff.New[i]
		if err := s.evaluateNewEvent(ctx, event, stats); err != nil {
			s.logger.Error("Failed to evaluate new position",
				logger.ErrorField(err), logger.IntField("event_id", int(event.ID)))
		}
	}

	if err := s.sourceRepo.RecordPoll(ctx, source.ID, len(records), utils.TimeNowUTC()); err != nil {
		s.logger.Error("Failed to record poll", logger.ErrorField(err), logger.IntField("source_id", int(source.ID)))
	}

	return stats, nil
}

func (s *orchestratorService) evaluateNewEvent(ctx context.Context, event *entity.AlertEvent, stats *dto.CycleStats) error {
	position, err := s.positionRepo.FindByID(ctx, event.PositionID)
	if err != nil {
		return fmt.Errorf("position %d not found: %w", event.PositionID, err)
	}

	// NEW events carry the snapshot of the record that opened the position.
	var record dto.TradeRecord
	if err := json.Unmarshal(event.Changes, &record); err != nil {
		return fmt.Errorf("corrupt NEW event snapshot: %w", err)
	}

	evalCtx := s.enrichment.BuildContext(ctx, *position, record)
	evaluation := s.consensus.Evaluate(ctx, event, evalCtx)

	if err := s.evaluationRepo.Create(ctx, evaluation); err != nil {
		return fmt.Errorf("failed to persist evaluation: %w", err)
	}
	stats.Evaluations++

	item, err := s.dispatcher.Enqueue(ctx, evaluation)
	if err != nil {
		return err
	}
	if item != nil {
		stats.Enqueued++
	}
	return nil
}

// notifySourceFailure pushes a source failure to the alert channel so a
// broken feed gets noticed before its positions go stale. Best effort.
func (s *orchestratorService) notifySourceFailure(source entity.Source, cycleErr error) {
	if s.notifier == nil {
		return
	}
	msg := telegram.FormatErrorAlertMessage(utils.TimeNowUTC(),
		fmt.Sprintf("source cycle: %s", source.Name), cycleErr.Error())
	if err := s.notifier.SendMessage(msg); err != nil {
		s.logger.Error("Failed to send error alert", logger.ErrorField(err))
	}
}

// publishEvents mirrors the cycle's events onto a redis stream for external
// consumers. Publishing is best effort; the durable store already holds the
// events.
func (s *orchestratorService) publishEvents(ctx context.Context, diff *dto.CycleDiff) {
	if s.redisClient == nil {
		return
	}
	groups := [][]entity.AlertEvent{diff.New, diff.Updated, diff.Closed}
	for _, events := range groups {
		for i := range events {
			payload, err := json.Marshal(events[i])
			if err != nil {
				continue
			}
			if err := s.redisClient.XAdd(ctx, &redis.XAddArgs{
				Stream: common.RedisStreamAlertEvents,
				Values: map[string]interface{}{"payload": payload},
				MaxLen: s.cfg.Redis.StreamMaxLen,
			}).Err(); err != nil {
				s.logger.Error("Failed to publish alert event", logger.ErrorField(err))
			}
		}
	}
}
