package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/config"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeSourceRepo struct {
	sources []entity.Source
	polls   map[uint]int
}

func (f *fakeSourceRepo) Create(_ context.Context, source *entity.Source) error {
	f.sources = append(f.sources, *source)
	return nil
}

func (f *fakeSourceRepo) FindByID(_ context.Context, id uint) (*entity.Source, error) {
	for i := range f.sources {
		if f.sources[i].ID == id {
			return &f.sources[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSourceRepo) FindAll(_ context.Context) ([]entity.Source, error) {
	return f.sources, nil
}

func (f *fakeSourceRepo) FindActive(_ context.Context) ([]entity.Source, error) {
	var out []entity.Source
	for _, s := range f.sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSourceRepo) SetActive(_ context.Context, id uint, active bool) error {
	for i := range f.sources {
		if f.sources[i].ID == id {
			f.sources[i].IsActive = active
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeSourceRepo) RecordPoll(_ context.Context, id uint, _ int, _ time.Time) error {
	if f.polls == nil {
		f.polls = map[uint]int{}
	}
	f.polls[id]++
	return nil
}

type fakeCollector struct {
	records map[uint][]dto.TradeRecord
	errs    map[uint]error
}

func (f *fakeCollector) Fetch(_ context.Context, source entity.Source) ([]dto.TradeRecord, error) {
	if err := f.errs[source.ID]; err != nil {
		return nil, err
	}
	return f.records[source.ID], nil
}

type stubDiffer struct {
	diff *dto.CycleDiff
}

func (s *stubDiffer) ProcessCycle(_ context.Context, sourceID uint, _ []dto.TradeRecord) (*dto.CycleDiff, error) {
	if s.diff != nil {
		return s.diff, nil
	}
	return &dto.CycleDiff{SourceID: sourceID}, nil
}

type stubEnrichment struct{}

func (stubEnrichment) BuildContext(_ context.Context, _ entity.Position, _ dto.TradeRecord) *dto.EvaluationContext {
	return &dto.EvaluationContext{}
}

type stubConsensus struct {
	score int
}

func (s *stubConsensus) Evaluate(_ context.Context, event *entity.AlertEvent, _ *dto.EvaluationContext) *entity.Evaluation {
	return &entity.Evaluation{
		AlertEventID:   event.ID,
		ConsensusScore: s.score,
		Recommendation: RecommendationFor(s.score),
	}
}

type stubDispatcher struct {
	enqueued []*entity.Evaluation
	drain    dto.DrainResult
}

func (s *stubDispatcher) Enqueue(_ context.Context, evaluation *entity.Evaluation) (*entity.NotificationItem, error) {
	s.enqueued = append(s.enqueued, evaluation)
	return &entity.NotificationItem{EvaluationID: evaluation.ID}, nil
}

func (s *stubDispatcher) DrainPending(_ context.Context, _ int) (*dto.DrainResult, error) {
	return &s.drain, nil
}

type orchestratorFixture struct {
	sources    *fakeSourceRepo
	collector  *fakeCollector
	positions  *fakePositionRepo
	evals      *fakeEvaluationRepo
	differ     *stubDiffer
	consensus  *stubConsensus
	dispatcher *stubDispatcher
	notifier   *fakeNotifier
}

func (f *orchestratorFixture) build(t *testing.T) OrchestratorService {
	t.Helper()
	var notifier telegram.Notifier
	if f.notifier != nil {
		notifier = f.notifier
	}
	svc, err := NewOrchestratorService(
		&config.Config{}, newTestLogger(t),
		f.sources, f.collector, f.positions, f.evals,
		f.differ, stubEnrichment{}, f.consensus, f.dispatcher,
		nil, notifier,
	)
	require.NoError(t, err)
	return svc
}

func newOrchestratorFixture() *orchestratorFixture {
	return &orchestratorFixture{
		sources:    &fakeSourceRepo{},
		collector:  &fakeCollector{records: map[uint][]dto.TradeRecord{}, errs: map[uint]error{}},
		positions:  &fakePositionRepo{positions: map[uint]*entity.Position{}},
		evals:      &fakeEvaluationRepo{evaluations: map[uint]*entity.Evaluation{}},
		differ:     &stubDiffer{},
		consensus:  &stubConsensus{score: 90},
		dispatcher: &stubDispatcher{},
		notifier:   &fakeNotifier{},
	}
}

func TestOrchestratorRunOnce_FullCycleStats(t *testing.T) {
	f := newOrchestratorFixture()
	f.sources.sources = []entity.Source{{ID: 1, Name: "trader-a", FeedURL: "http://feed", IsActive: true}}

	record := dto.TradeRecord{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10}
	f.collector.records[1] = []dto.TradeRecord{record}

	snapshot, err := json.Marshal(record)
	require.NoError(t, err)
	f.positions.positions[7] = &entity.Position{ID: 7, SourceID: 1, Symbol: "AAPL", Status: entity.PositionStatusOpen}
	f.differ.diff = &dto.CycleDiff{
		SourceID: 1,
		New:      []entity.AlertEvent{{ID: 11, PositionID: 7, SourceID: 1, Kind: entity.AlertEventNew, Changes: datatypes.JSON(snapshot)}},
	}
	f.dispatcher.drain = dto.DrainResult{Sent: 1}

	stats, err := f.build(t).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SourcesPolled)
	assert.Equal(t, 0, stats.SourcesFailed)
	assert.Equal(t, 1, stats.NewPositions)
	assert.Equal(t, 1, stats.Evaluations)
	assert.Equal(t, 1, stats.Enqueued)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, f.sources.polls[1])
	assert.Len(t, f.dispatcher.enqueued, 1)
	assert.Empty(t, f.notifier.messages)
}

func TestOrchestratorRunOnce_SourceFailureSendsErrorAlert(t *testing.T) {
	f := newOrchestratorFixture()
	f.sources.sources = []entity.Source{{ID: 1, Name: "trader-a", FeedURL: "http://feed", IsActive: true}}
	f.collector.errs[1] = fmt.Errorf("feed http://feed returned status 503")

	stats, err := f.build(t).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SourcesFailed)
	assert.Equal(t, 0, stats.SourcesPolled)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "ERROR ALERT")
	assert.Contains(t, f.notifier.messages[0], "trader-a")
	assert.Contains(t, f.notifier.messages[0], "status 503")
}

func TestOrchestratorRunOnce_FailureWithoutNotifierConfigured(t *testing.T) {
	f := newOrchestratorFixture()
	f.notifier = nil
	f.sources.sources = []entity.Source{{ID: 1, Name: "trader-a", FeedURL: "http://feed", IsActive: true}}
	f.collector.errs[1] = fmt.Errorf("connection refused")

	stats, err := f.build(t).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SourcesFailed)
}
