package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/internal/notifications"
	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
)

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) Notify(context.Context, uuid.UUID, string, json.RawMessage) error {
	f.calls++
	return f.err
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dispatch_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OutboxEvent{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func emit(t *testing.T, db *gorm.DB, svc *outbox.Service, recipient uuid.UUID) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			RecipientID:   recipient,
			Data:          map[string]any{"order_code": "ORD-000001"},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
}

func TestDrainDeliversNotifications(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	repo := outbox.NewRepository(db)
	svc := outbox.NewService(repo, logg)

	notify, err := notifications.NewService(db)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	d, err := New(repo, notify, logg, nil, config.OutboxConfig{
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}

	user := uuid.New()
	emit(t, db, svc, user)
	emit(t, db, svc, user)

	n, err := d.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 dispatched, got %d", n)
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", user).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 notifications, got %d", count)
	}
	var pending int64
	db.Model(&models.OutboxEvent{}).Where("status = ?", enums.OutboxStatusPending).Count(&pending)
	if pending != 0 {
		t.Fatalf("expected empty backlog, got %d pending", pending)
	}
}

func TestRepeatedFailureDeadLetters(t *testing.T) {
	t.Parallel()

	db := openDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	repo := outbox.NewRepository(db)
	svc := outbox.NewService(repo, logg)
	sink := &failingNotifier{err: errors.New("downstream down")}

	d, err := New(repo, sink, logg, nil, config.OutboxConfig{
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}

	emit(t, db, svc, uuid.New())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.DrainOnce(ctx); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}
	if sink.calls != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", sink.calls)
	}

	var row models.OutboxEvent
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != enums.OutboxStatusDead {
		t.Fatalf("expected dead-lettered row, got %s", row.Status)
	}
	if row.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", row.Attempts)
	}
	if row.LastError == nil || *row.LastError == "" {
		t.Fatal("expected last error recorded")
	}

	// A dead row leaves the backlog.
	if n, _ := d.DrainOnce(ctx); n != 0 {
		t.Fatalf("expected nothing to dispatch, got %d", n)
	}
	if sink.calls != 3 {
		t.Fatalf("dead row must not be retried, got %d calls", sink.calls)
	}
}
