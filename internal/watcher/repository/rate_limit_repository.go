package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang-trade-sentry/internal/entity"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitRepository enforces the sliding send window through a single
// versioned row. Reserve performs the check-and-increment atomically under a
// row lock, so concurrent dispatchers can never jointly exceed the cap, and
// the outbound send itself happens outside any transaction.
type RateLimitRepository interface {
	// Reserve claims one send slot. When the window is full it returns
	// ok=false and the earliest time a slot frees up.
	Reserve(ctx context.Context, max int, window time.Duration, now time.Time) (ok bool, retryAt time.Time, err error)
	// Release returns a slot reserved for a send that ultimately failed.
	Release(ctx context.Context, reservedAt time.Time) error
}

// NewRateLimitRepository creates a new GORM-based rate limit repository.
func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

type rateLimitRepository struct {
	db *gorm.DB
}

func (r *rateLimitRepository) Reserve(ctx context.Context, max int, window time.Duration, now time.Time) (bool, time.Time, error) {
	var (
		ok      bool
		retryAt time.Time
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, stamps, err := lockWindowRow(tx)
		if err != nil {
			return err
		}

		kept := stamps[:0]
		for _, ts := range stamps {
			if now.Sub(ts) < window {
				kept = append(kept, ts)
			}
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].Before(kept[j]) })

		if len(kept) >= max {
			ok = false
			retryAt = kept[0].Add(window)
			// Persist the prune even when rejecting, so the row stays small.
			return saveWindowRow(tx, row, kept)
		}

		ok = true
		kept = append(kept, now)
		return saveWindowRow(tx, row, kept)
	})
	if err != nil {
		return false, time.Time{}, fmt.Errorf("failed to reserve send slot: %w", err)
	}
	return ok, retryAt, nil
}

func (r *rateLimitRepository) Release(ctx context.Context, reservedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, stamps, err := lockWindowRow(tx)
		if err != nil {
			return err
		}
		for i, ts := range stamps {
			if ts.Equal(reservedAt) {
				stamps = append(stamps[:i], stamps[i+1:]...)
				break
			}
		}
		return saveWindowRow(tx, row, stamps)
	})
}

func lockWindowRow(tx *gorm.DB) (*entity.NotificationRateLimit, []time.Time, error) {
	var row entity.NotificationRateLimit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", 1).
		First(&row).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock rate limit row: %w", err)
	}

	var stamps []time.Time
	if len(row.SentTimestamps) > 0 {
		if err := json.Unmarshal(row.SentTimestamps, &stamps); err != nil {
			return nil, nil, fmt.Errorf("corrupt rate limit window: %w", err)
		}
	}
	return &row, stamps, nil
}

func saveWindowRow(tx *gorm.DB, row *entity.NotificationRateLimit, stamps []time.Time) error {
	raw, err := json.Marshal(stamps)
	if err != nil {
		return err
	}
	row.SentTimestamps = datatypes.JSON(raw)
	row.Version++
	return tx.Save(row).Error
}
