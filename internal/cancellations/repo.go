package cancellations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for cancel requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.CancelRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CancelRequest, error)
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.CancelRequest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CancelRequest, error)
	// Resolve flips a pending request to its final status; reports whether
	// the request was still pending.
	Resolve(ctx context.Context, id uuid.UUID, status enums.CancelStatus, note string, resolvedBy *uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cancel request repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.CancelRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CancelRequest, error) {
	var req models.CancelRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.CancelRequest, error) {
	var req models.CancelRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.CancelStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CancelRequest, error) {
	var rows []models.CancelRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, status enums.CancelStatus, note string, resolvedBy *uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.CancelRequest{}).
		Where("id = ? AND status = ?", id, enums.CancelStatusPending).
		Updates(map[string]any{
			"status":          status,
			"resolution_note": note,
			"resolved_by":     resolvedBy,
			"resolved_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
