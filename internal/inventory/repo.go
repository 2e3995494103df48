package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error)
	FindBySKU(ctx context.Context, sku SKURef) (*models.StockItem, error)
	Create(ctx context.Context, item *models.StockItem) error
	// CompareAndSwap persists the item's mutable columns only when the stored
	// version still matches expectedVersion. Reports whether the write won.
	CompareAndSwap(ctx context.Context, item *models.StockItem, expectedVersion int64) (bool, error)
	// DeductAvailable decrements quantity only while available quantity covers
	// qty. Reports whether a row was updated.
	DeductAvailable(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, stockItemID uuid.UUID, limit int) ([]models.InventoryTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindBySKU(ctx context.Context, sku SKURef) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ? AND size_id = ?", sku.ProductID, sku.VariantID, sku.SizeID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, item *models.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) CompareAndSwap(ctx context.Context, item *models.StockItem, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.StockItem{}).
		Where("id = ? AND version = ?", item.ID, expectedVersion).
		Updates(map[string]any{
			"quantity":      item.Quantity,
			"average_cost":  item.AverageCost,
			"selling_price": item.SellingPrice,
			"final_price":   item.FinalPrice,
			"version":       expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeductAvailable(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET quantity = quantity - ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL AND quantity - reserved_qty >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Reserve(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET reserved_qty = reserved_qty + ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL AND quantity - reserved_qty >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Release(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_items
		SET reserved_qty = reserved_qty - ?,
			version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, stockItemID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	var rows []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("stock_item_id = ?", stockItemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
