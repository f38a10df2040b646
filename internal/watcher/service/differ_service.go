package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/pkg/logger"
	"golang-trade-sentry/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DifferService converts one poll's records into position lifecycle events.
type DifferService interface {
	// ProcessCycle diffs the source's current records against its stored
	// open positions inside one transaction. Either every insert, update
	// and close of the cycle commits, or none do.
	ProcessCycle(ctx context.Context, sourceID uint, records []dto.TradeRecord) (*dto.CycleDiff, error)
}

// NewDifferService creates a new state differ.
func NewDifferService(db *gorm.DB, positionRepo repository.PositionRepository, alertEventRepo repository.AlertEventRepository, log *logger.Logger) DifferService {
	return &differService{
		db:             db,
		positionRepo:   positionRepo,
		alertEventRepo: alertEventRepo,
		logger:         log,
	}
}

type differService struct {
	db             *gorm.DB
	positionRepo   repository.PositionRepository
	alertEventRepo repository.AlertEventRepository
	logger         *logger.Logger
}

func (s *differService) ProcessCycle(ctx context.Context, sourceID uint, records []dto.TradeRecord) (*dto.CycleDiff, error) {
	cycleAt := utils.TimeNowUTC()
	diff := &dto.CycleDiff{SourceID: sourceID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positionRepo := s.positionRepo.WithTx(tx)
		eventRepo := s.alertEventRepo.WithTx(tx)

		existing, err := positionRepo.FindOpenBySourceForUpdate(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to lock open positions: %w", err)
		}

		openByKey := make(map[string]*entity.Position, len(existing))
		for i := range existing {
			openByKey[existing[i].IdentityKey] = &existing[i]
		}

		seen := make(map[string]bool, len(records))
		for _, record := range records {
			if reason, ok := validateRecord(record); !ok {
				s.logger.Warn("Skipping malformed feed record",
					logger.IntField("source_id", int(sourceID)),
					logger.StringField("symbol", record.Symbol),
					logger.StringField("reason", reason))
				diff.SkippedRecords++
				continue
			}

			key := IdentityKey(record)
			if seen[key] {
				// The feed showed the same position twice; only the first
				// occurrence counts for this cycle.
				continue
			}
			seen[key] = true

			position, found := openByKey[key]
			if !found {
				event, err := s.openPosition(ctx, positionRepo, eventRepo, sourceID, key, record, cycleAt)
				if err != nil {
					return err
				}
				diff.New = append(diff.New, *event)
				continue
			}

			changes := diffMutableFields(position, record)
			if len(changes) == 0 {
				continue
			}
			event, err := s.updatePosition(ctx, positionRepo, eventRepo, position, record, changes, cycleAt)
			if err != nil {
				return err
			}
			diff.Updated = append(diff.Updated, *event)
		}

		for key, position := range openByKey {
			if seen[key] {
				continue
			}
			event, err := s.closePosition(ctx, positionRepo, eventRepo, position, cycleAt)
			if err != nil {
				return err
			}
			diff.Closed = append(diff.Closed, *event)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cycle for source %d rolled back: %w", sourceID, err)
	}

	return diff, nil
}

func (s *differService) openPosition(ctx context.Context, positionRepo repository.PositionRepository, eventRepo repository.AlertEventRepository, sourceID uint, key string, record dto.TradeRecord, cycleAt time.Time) (*entity.AlertEvent, error) {
	position := &entity.Position{
		SourceID:    sourceID,
		IdentityKey: key,
		Symbol:      record.Symbol,
		Strategy:    record.Strategy,
		Direction:   record.Direction,
		OpenPrice:   record.Price,
		Quantity:    record.Quantity,
		Strike:      record.Strike,
		Expiry:      record.Expiry,
		Notes:       record.Notes,
		Status:      entity.PositionStatusOpen,
		OpenedAt:    cycleAt,
	}
	if err := positionRepo.Create(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to insert position %s: %w", record.Symbol, err)
	}

	snapshot, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	event := &entity.AlertEvent{
		PositionID: position.ID,
		SourceID:   sourceID,
		Kind:       entity.AlertEventNew,
		Changes:    datatypes.JSON(snapshot),
		CycleAt:    cycleAt,
	}
	if err := eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert NEW event: %w", err)
	}
	return event, nil
}

func (s *differService) updatePosition(ctx context.Context, positionRepo repository.PositionRepository, eventRepo repository.AlertEventRepository, position *entity.Position, record dto.TradeRecord, changes map[string]entity.FieldChange, cycleAt time.Time) (*entity.AlertEvent, error) {
	position.OpenPrice = record.Price
	position.Quantity = record.Quantity
	position.Strike = record.Strike
	position.Expiry = record.Expiry
	position.Notes = record.Notes
	if err := positionRepo.Update(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to update position %d: %w", position.ID, err)
	}

	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	event := &entity.AlertEvent{
		PositionID: position.ID,
		SourceID:   position.SourceID,
		Kind:       entity.AlertEventUpdated,
		Changes:    datatypes.JSON(raw),
		CycleAt:    cycleAt,
	}
	if err := eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert UPDATED event: %w", err)
	}
	return event, nil
}

func (s *differService) closePosition(ctx context.Context, positionRepo repository.PositionRepository, eventRepo repository.AlertEventRepository, position *entity.Position, cycleAt time.Time) (*entity.AlertEvent, error) {
	position.Status = entity.PositionStatusClosed
	position.ClosedAt = utils.ToPointer(cycleAt)
	if err := positionRepo.Update(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to close position %d: %w", position.ID, err)
	}

	raw, err := json.Marshal(map[string]entity.FieldChange{
		"status": {Before: entity.PositionStatusOpen, After: entity.PositionStatusClosed},
	})
	if err != nil {
		return nil, err
	}
	event := &entity.AlertEvent{
		PositionID: position.ID,
		SourceID:   position.SourceID,
		Kind:       entity.AlertEventClosed,
		Changes:    datatypes.JSON(raw),
		CycleAt:    cycleAt,
	}
	if err := eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to insert CLOSED event: %w", err)
	}
	return event, nil
}

// IdentityKey derives the stable key distinguishing one position from
// another within a source. Only identity-defining fields participate;
// mutable fields like price and quantity do not.
func IdentityKey(record dto.TradeRecord) string {
	strike := "-"
	if record.Strike != nil {
		strike = fmt.Sprintf("%.4f", *record.Strike)
	}
	expiry := "-"
	if record.Expiry != nil {
		expiry = strings.TrimSpace(*record.Expiry)
	}
	raw := strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(record.Symbol)),
		strings.ToUpper(strings.TrimSpace(record.Strategy)),
		strings.ToLower(strings.TrimSpace(record.Direction)),
		strike,
		expiry,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func validateRecord(record dto.TradeRecord) (string, bool) {
	switch {
	case strings.TrimSpace(record.Symbol) == "":
		return "missing symbol", false
	case strings.TrimSpace(record.Strategy) == "":
		return "missing strategy", false
	case strings.TrimSpace(record.Direction) == "":
		return "missing direction", false
	}
	return "", true
}

func diffMutableFields(position *entity.Position, record dto.TradeRecord) map[string]entity.FieldChange {
	changes := make(map[string]entity.FieldChange)

	if position.OpenPrice != record.Price {
		changes["price"] = entity.FieldChange{Before: position.OpenPrice, After: record.Price}
	}
	if position.Quantity != record.Quantity {
		changes["quantity"] = entity.FieldChange{Before: position.Quantity, After: record.Quantity}
	}
	if !floatPtrEqual(position.Strike, record.Strike) {
		changes["strike"] = entity.FieldChange{Before: position.Strike, After: record.Strike}
	}
	if !stringPtrEqual(position.Expiry, record.Expiry) {
		changes["expiry"] = entity.FieldChange{Before: position.Expiry, After: record.Expiry}
	}
	if position.Notes != record.Notes {
		changes["notes"] = entity.FieldChange{Before: position.Notes, After: record.Notes}
	}

	return changes
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
