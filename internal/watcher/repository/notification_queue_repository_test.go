package repository

import (
	"context"
	"testing"
	"time"

	"golang-trade-sentry/internal/entity"
	"golang-trade-sentry/internal/watcher/dto"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("failed to open gorm: %s", err)
	}
	return gdb, mock
}

func queueRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "evaluation_id", "priority", "status", "retry_count",
		"max_retries", "next_attempt_at", "sent_at", "last_error",
		"created_at", "updated_at",
	})
}

func TestNotificationQueueRepository_FindPendingDue(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewNotificationQueueRepository(gdb)

	now := time.Now()
	rows := queueRows().
		AddRow(2, 20, 5, "pending", 0, 3, nil, nil, "", now, now).
		AddRow(1, 10, 28, "pending", 1, 3, nil, nil, "", now, now)

	mock.ExpectQuery(`SELECT \* FROM "notification_queue" WHERE status = .+ ORDER BY priority, created_at, id`).
		WillReturnRows(rows)

	items, err := repo.FindPendingDue(context.Background(), now, 20)
	if err != nil {
		t.Fatalf("FindPendingDue failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Priority != 5 || items[1].Priority != 28 {
		t.Errorf("unexpected priorities: %d, %d", items[0].Priority, items[1].Priority)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNotificationQueueRepository_GetFiltersByStatus(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewNotificationQueueRepository(gdb)

	now := time.Now()
	rows := queueRows().
		AddRow(3, 30, 10, "rate_limited", 0, 3, now.Add(time.Minute), nil, "", now, now)

	mock.ExpectQuery(`SELECT \* FROM "notification_queue" WHERE status IN .+ ORDER BY priority, created_at, id`).
		WillReturnRows(rows)

	items, err := repo.Get(context.Background(), dto.GetQueueParam{
		Statuses: []entity.NotificationStatus{entity.NotificationStatusRateLimited},
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(items) != 1 || items[0].Status != entity.NotificationStatusRateLimited {
		t.Errorf("unexpected result: %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNotificationQueueRepository_RequeueDueRateLimited(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewNotificationQueueRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "notification_queue" SET`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.RequeueDueRateLimited(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RequeueDueRateLimited failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows requeued, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
