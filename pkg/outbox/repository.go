package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchPending returns the oldest undispatched rows up to limit.
func (r *Repository) FetchPending(limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkDispatched(id uuid.UUID) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.OutboxStatusDispatched,
			"dispatched_at": time.Now(),
		}).Error
}

// MarkFailed records the failure and dead-letters the row once attempts
// reach maxAttempts.
func (r *Repository) MarkFailed(id uuid.UUID, dispatchErr error, maxAttempts int) error {
	updates := map[string]any{
		"last_error": dispatchErr.Error(),
		"attempts":   gorm.Expr("attempts + 1"),
	}
	if err := r.db.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	if maxAttempts <= 0 {
		return nil
	}
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ? AND attempts >= ? AND status = ?", id, maxAttempts, enums.OutboxStatusPending).
		Update("status", enums.OutboxStatusDead).Error
}

// DeleteDispatchedBefore removes dispatched rows older than cutoff and
// returns how many were deleted.
func (r *Repository) DeleteDispatchedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("status = ? AND dispatched_at < ?", enums.OutboxStatusDispatched, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}
