package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db/models"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
)

// Service persists user-facing notifications. The dispatcher is the producer;
// the API reads them back. Failures here never block a workflow.
type Service interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload json.RawMessage) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Notification, string, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type serviceImpl struct {
	db *gorm.DB
}

// NewService wires the notification store.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("notifications: db is required")
	}
	return &serviceImpl{db: db}, nil
}

func (s *serviceImpl) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload json.RawMessage) error {
	if userID == uuid.Nil {
		// Events without a recipient are broadcast to nobody.
		return nil
	}
	row := models.Notification{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing notification")
	}
	return nil
}

func (s *serviceImpl) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Notification, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "malformed cursor")
	} else if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Notification
	if err := q.Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing notifications")
	}

	next := ""
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *serviceImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "marking notification read")
	}
	if res.RowsAffected == 0 {
		// Already read is fine; missing is not.
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking notification")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
	}
	return nil
}
