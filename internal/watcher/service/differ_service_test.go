package service

import (
	"context"
	"encoding/json"
	"testing"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/pkg/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type differFixture struct {
	svc       DifferService
	positions *fakePositionRepo
	events    *fakeAlertEventRepo
	mock      sqlmock.Sqlmock
}

// newDifferFixture backs the differ with stateful fakes; the mocked
// connection only carries the transaction begin/commit around each cycle.
func newDifferFixture(t *testing.T) *differFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	positions := &fakePositionRepo{positions: map[uint]*entity.Position{}}
	events := &fakeAlertEventRepo{events: map[uint]*entity.AlertEvent{}}
	return &differFixture{
		svc:       NewDifferService(gormDB, positions, events, newTestLogger(t)),
		positions: positions,
		events:    events,
		mock:      mock,
	}
}

func (f *differFixture) runCycle(t *testing.T, sourceID uint, records []dto.TradeRecord) *dto.CycleDiff {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	diff, err := f.svc.ProcessCycle(context.Background(), sourceID, records)
	require.NoError(t, err)
	return diff
}

func TestProcessCycle_NewPositions(t *testing.T) {
	f := newDifferFixture(t)
	records := []dto.TradeRecord{
		{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)},
		{Symbol: "TSLA", Strategy: "shares", Direction: "buy", Price: 242.10, Quantity: 50},
	}

	diff := f.runCycle(t, 1, records)

	require.Len(t, diff.New, 2)
	assert.Empty(t, diff.Updated)
	assert.Empty(t, diff.Closed)
	assert.Zero(t, diff.SkippedRecords)

	event := diff.New[0]
	assert.Equal(t, entity.AlertEventNew, event.Kind)
	assert.Equal(t, uint(1), event.SourceID)

	var snapshot dto.TradeRecord
	require.NoError(t, json.Unmarshal(event.Changes, &snapshot))
	assert.Equal(t, "AAPL", snapshot.Symbol)
	assert.Equal(t, 3.50, snapshot.Price)

	position, err := f.positions.FindByID(context.Background(), event.PositionID)
	require.NoError(t, err)
	assert.Equal(t, entity.PositionStatusOpen, position.Status)
	assert.Equal(t, IdentityKey(records[0]), position.IdentityKey)
}

func TestProcessCycle_UnchangedFeedEmitsNothing(t *testing.T) {
	f := newDifferFixture(t)
	records := []dto.TradeRecord{
		{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)},
	}

	first := f.runCycle(t, 1, records)
	require.Len(t, first.New, 1)

	second := f.runCycle(t, 1, records)
	assert.Empty(t, second.New)
	assert.Empty(t, second.Updated)
	assert.Empty(t, second.Closed)
}

func TestProcessCycle_PriceChangeEmitsUpdated(t *testing.T) {
	f := newDifferFixture(t)
	record := dto.TradeRecord{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)}
	f.runCycle(t, 1, []dto.TradeRecord{record})

	record.Price = 4.10
	diff := f.runCycle(t, 1, []dto.TradeRecord{record})

	require.Len(t, diff.Updated, 1)
	assert.Empty(t, diff.New)
	assert.Empty(t, diff.Closed)
	assert.Equal(t, entity.AlertEventUpdated, diff.Updated[0].Kind)

	var changes map[string]entity.FieldChange
	require.NoError(t, json.Unmarshal(diff.Updated[0].Changes, &changes))
	require.Contains(t, changes, "price")
	assert.Equal(t, 3.50, changes["price"].Before)
	assert.Equal(t, 4.10, changes["price"].After)

	position, err := f.positions.FindByID(context.Background(), diff.Updated[0].PositionID)
	require.NoError(t, err)
	assert.Equal(t, 4.10, position.OpenPrice)
	assert.Equal(t, entity.PositionStatusOpen, position.Status)
}

func TestProcessCycle_EmptyFeedClosesAll(t *testing.T) {
	f := newDifferFixture(t)
	first := f.runCycle(t, 1, []dto.TradeRecord{
		{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)},
		{Symbol: "TSLA", Strategy: "shares", Direction: "buy", Price: 242.10, Quantity: 50},
	})
	require.Len(t, first.New, 2)

	diff := f.runCycle(t, 1, nil)

	require.Len(t, diff.Closed, 2)
	assert.Empty(t, diff.New)
	assert.Empty(t, diff.Updated)
	for _, event := range diff.Closed {
		position, err := f.positions.FindByID(context.Background(), event.PositionID)
		require.NoError(t, err)
		assert.Equal(t, entity.PositionStatusClosed, position.Status)
		assert.NotNil(t, position.ClosedAt)
	}
}

func TestProcessCycle_VanishedOptionEmitsClosed(t *testing.T) {
	f := newDifferFixture(t)
	first := f.runCycle(t, 1, []dto.TradeRecord{
		{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)},
	})
	require.Len(t, first.New, 1)

	diff := f.runCycle(t, 1, []dto.TradeRecord{})

	require.Len(t, diff.Closed, 1)
	assert.Equal(t, entity.AlertEventClosed, diff.Closed[0].Kind)
	assert.Equal(t, first.New[0].PositionID, diff.Closed[0].PositionID)

	var changes map[string]entity.FieldChange
	require.NoError(t, json.Unmarshal(diff.Closed[0].Changes, &changes))
	require.Contains(t, changes, "status")
	assert.Equal(t, "open", changes["status"].Before)
	assert.Equal(t, "closed", changes["status"].After)
}

func TestProcessCycle_MalformedRecordSkipped(t *testing.T) {
	f := newDifferFixture(t)
	diff := f.runCycle(t, 1, []dto.TradeRecord{
		{Symbol: "AAPL", Strategy: "150P"}, // no direction
		{Symbol: "TSLA", Strategy: "shares", Direction: "buy", Price: 242.10, Quantity: 50},
	})

	assert.Equal(t, 1, diff.SkippedRecords)
	require.Len(t, diff.New, 1)
	var snapshot dto.TradeRecord
	require.NoError(t, json.Unmarshal(diff.New[0].Changes, &snapshot))
	assert.Equal(t, "TSLA", snapshot.Symbol)
}

func TestProcessCycle_DuplicateRecordCountedOnce(t *testing.T) {
	f := newDifferFixture(t)
	record := dto.TradeRecord{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Price: 3.50, Quantity: 10, Strike: utils.ToPointer(150.0)}

	diff := f.runCycle(t, 1, []dto.TradeRecord{record, record})

	require.Len(t, diff.New, 1)
	assert.Len(t, f.positions.positions, 1)
}

func TestIdentityKey_Stability(t *testing.T) {
	record := dto.TradeRecord{
		Symbol:    "AAPL",
		Strategy:  "150P",
		Direction: "buy",
		Price:     3.50,
		Quantity:  10,
		Strike:    utils.ToPointer(150.0),
	}

	key1 := IdentityKey(record)
	key2 := IdentityKey(record)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64)
}

func TestIdentityKey_IgnoresMutableFields(t *testing.T) {
	base := dto.TradeRecord{
		Symbol:    "AAPL",
		Strategy:  "150P",
		Direction: "buy",
		Price:     3.50,
		Quantity:  10,
		Strike:    utils.ToPointer(150.0),
	}

	changed := base
	changed.Price = 4.10
	changed.Quantity = 25
	changed.Notes = "added on weakness"

	assert.Equal(t, IdentityKey(base), IdentityKey(changed))
}

func TestIdentityKey_NormalizesCaseAndSpace(t *testing.T) {
	a := dto.TradeRecord{Symbol: "aapl ", Strategy: " 150p", Direction: "BUY"}
	b := dto.TradeRecord{Symbol: "AAPL", Strategy: "150P", Direction: "buy"}

	assert.Equal(t, IdentityKey(a), IdentityKey(b))
}

func TestIdentityKey_DistinguishesIdentityFields(t *testing.T) {
	base := dto.TradeRecord{Symbol: "AAPL", Strategy: "150P", Direction: "buy", Strike: utils.ToPointer(150.0)}

	otherStrike := base
	otherStrike.Strike = utils.ToPointer(155.0)
	assert.NotEqual(t, IdentityKey(base), IdentityKey(otherStrike))

	otherDirection := base
	otherDirection.Direction = "sell"
	assert.NotEqual(t, IdentityKey(base), IdentityKey(otherDirection))

	noStrike := base
	noStrike.Strike = nil
	assert.NotEqual(t, IdentityKey(base), IdentityKey(noStrike))

	withExpiry := base
	withExpiry.Expiry = utils.ToPointer("2026-09-18")
	assert.NotEqual(t, IdentityKey(base), IdentityKey(withExpiry))
}

func TestValidateRecord(t *testing.T) {
	valid := dto.TradeRecord{Symbol: "TSLA", Strategy: "shares", Direction: "buy"}
	_, ok := validateRecord(valid)
	assert.True(t, ok)

	tests := []struct {
		name   string
		record dto.TradeRecord
		reason string
	}{
		{"missing symbol", dto.TradeRecord{Strategy: "shares", Direction: "buy"}, "missing symbol"},
		{"blank symbol", dto.TradeRecord{Symbol: "  ", Strategy: "shares", Direction: "buy"}, "missing symbol"},
		{"missing strategy", dto.TradeRecord{Symbol: "TSLA", Direction: "buy"}, "missing strategy"},
		{"missing direction", dto.TradeRecord{Symbol: "TSLA", Strategy: "shares"}, "missing direction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := validateRecord(tt.record)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestDiffMutableFields_NoChanges(t *testing.T) {
	position := &entity.Position{
		Symbol:    "AAPL",
		Strategy:  "150P",
		Direction: "buy",
		OpenPrice: 3.50,
		Quantity:  10,
		Strike:    utils.ToPointer(150.0),
	}
	record := dto.TradeRecord{
		Symbol:    "AAPL",
		Strategy:  "150P",
		Direction: "buy",
		Price:     3.50,
		Quantity:  10,
		Strike:    utils.ToPointer(150.0),
	}

	assert.Empty(t, diffMutableFields(position, record))
}

func TestDiffMutableFields_PriceAndQuantity(t *testing.T) {
	position := &entity.Position{OpenPrice: 3.50, Quantity: 10}
	record := dto.TradeRecord{Price: 4.10, Quantity: 25}

	changes := diffMutableFields(position, record)

	assert.Len(t, changes, 2)
	assert.Equal(t, 3.50, changes["price"].Before)
	assert.Equal(t, 4.10, changes["price"].After)
	assert.Equal(t, 10.0, changes["quantity"].Before)
	assert.Equal(t, 25.0, changes["quantity"].After)
}

func TestDiffMutableFields_PointerFields(t *testing.T) {
	position := &entity.Position{Strike: utils.ToPointer(150.0)}
	record := dto.TradeRecord{Strike: nil, Expiry: utils.ToPointer("2026-09-18")}

	changes := diffMutableFields(position, record)

	assert.Contains(t, changes, "strike")
	assert.Contains(t, changes, "expiry")

	// Equal pointer values are not a change.
	record.Strike = utils.ToPointer(150.0)
	record.Expiry = nil
	assert.Empty(t, diffMutableFields(position, record))
}
