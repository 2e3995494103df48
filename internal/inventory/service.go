package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
)

// casMaxRetries bounds the optimistic retry loop on stock-in. Contention on a
// single SKU is short-lived, so a small bound is enough; exhausting it is a
// dependency failure, not a business error.
const casMaxRetries = 5

// SKURef identifies one sellable unit: a product in a given variant and size.
type SKURef struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	SizeID    uuid.UUID
}

// StockInInput describes a receipt of goods into the warehouse.
type StockInInput struct {
	SKU                 SKURef
	Quantity            int
	UnitCost            decimal.Decimal
	TargetProfitPercent *decimal.Decimal
	PercentDiscount     *decimal.Decimal
	LowStockThreshold   *int
	Reason              enums.InventoryReason
	ReferenceType       string
	ReferenceID         string
	ActorID             *uuid.UUID
}

// StockOutInput describes a removal of goods, either a sale deduction or a
// write-off.
type StockOutInput struct {
	StockItemID   uuid.UUID
	Quantity      int
	Reason        enums.InventoryReason
	ReferenceType string
	ReferenceID   string
	ActorID       *uuid.UUID
}

// AdjustInput reconciles ledger quantity with a physical count.
type AdjustInput struct {
	StockItemID uuid.UUID
	NewQuantity int
	Note        string
	ActorID     *uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the stock ledger: every quantity or cost mutation flows through
// it and leaves an inventory transaction behind.
type Service interface {
	// StockIn receives goods, recomputing the weighted average cost and the
	// derived prices. Creates the stock item on first receipt. Pass a nil tx
	// to run in a transaction of its own.
	StockIn(ctx context.Context, tx *gorm.DB, input StockInInput) (*models.StockItem, error)
	// StockOut deducts quantity, failing with CodeInsufficientStock when the
	// available (unreserved) quantity does not cover the request.
	StockOut(ctx context.Context, tx *gorm.DB, input StockOutInput) (*models.StockItem, error)
	// Adjust sets the on-hand quantity to a counted value and records the
	// delta as a stocktake transaction.
	Adjust(ctx context.Context, input AdjustInput) (*models.StockItem, error)
	Reserve(ctx context.Context, tx *gorm.DB, stockItemID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, stockItemID uuid.UUID, qty int) error
	Get(ctx context.Context, stockItemID uuid.UUID) (*models.StockItem, error)
	GetBySKU(ctx context.Context, sku SKURef) (*models.StockItem, error)
	History(ctx context.Context, stockItemID uuid.UUID, limit int) ([]models.InventoryTransaction, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo             Repository
	Tx               txRunner
	Outbox           eventEmitter
	Logger           *logger.Logger
	DefaultProfitPct decimal.Decimal
}

type serviceImpl struct {
	repo             Repository
	tx               txRunner
	outbox           eventEmitter
	logg             *logger.Logger
	defaultProfitPct decimal.Decimal
}

// NewService wires the stock ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory: Repo is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("inventory: Tx is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("inventory: Outbox is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("inventory: Logger is required")
	}
	return &serviceImpl{
		repo:             params.Repo,
		tx:               params.Tx,
		outbox:           params.Outbox,
		logg:             params.Logger,
		defaultProfitPct: params.DefaultProfitPct,
	}, nil
}

func (s *serviceImpl) StockIn(ctx context.Context, tx *gorm.DB, input StockInInput) (*models.StockItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}
	if tx != nil {
		return s.stockIn(ctx, tx, input)
	}
	var item *models.StockItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.stockIn(ctx, tx, input)
		return err
	})
	return item, err
}

func (s *serviceImpl) stockIn(ctx context.Context, tx *gorm.DB, input StockInInput) (*models.StockItem, error) {
	repo := s.repo.WithTx(tx)

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		item, err := repo.FindBySKU(ctx, input.SKU)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, cerr := s.createOnFirstReceipt(ctx, repo, input)
			if cerr == nil {
				return created, s.recordReceipt(ctx, repo, created, input)
			}
			// Lost the insert race; reload and fall through to the update path.
			if !db.IsUniqueViolation(cerr, "ux_stock_items_sku") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "creating stock item")
			}
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock item")
		}

		expected := item.Version
		item.AverageCost = WeightedAverageCost(item.Quantity, item.AverageCost, input.Quantity, input.UnitCost)
		item.Quantity += input.Quantity
		if input.TargetProfitPercent != nil {
			item.TargetProfitPercent = *input.TargetProfitPercent
		}
		if input.PercentDiscount != nil {
			item.PercentDiscount = *input.PercentDiscount
		}
		prices := ComputePrices(item.AverageCost, item.TargetProfitPercent, item.PercentDiscount)
		item.SellingPrice = prices.SellingPrice
		item.FinalPrice = prices.FinalPrice

		won, err := repo.CompareAndSwap(ctx, item, expected)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating stock item")
		}
		if !won {
			continue
		}
		item.Version = expected + 1
		return item, s.recordReceipt(ctx, repo, item, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock item update contention exceeded retry budget").
		WithDetails(map[string]any{"product_id": input.SKU.ProductID.String()})
}

func (s *serviceImpl) createOnFirstReceipt(ctx context.Context, repo Repository, input StockInInput) (*models.StockItem, error) {
	profitPct := s.defaultProfitPct
	if input.TargetProfitPercent != nil {
		profitPct = *input.TargetProfitPercent
	}
	discount := decimal.Zero
	if input.PercentDiscount != nil {
		discount = *input.PercentDiscount
	}
	prices := ComputePrices(input.UnitCost, profitPct, discount)
	item := &models.StockItem{
		ProductID:           input.SKU.ProductID,
		VariantID:           input.SKU.VariantID,
		SizeID:              input.SKU.SizeID,
		Quantity:            input.Quantity,
		AverageCost:         input.UnitCost,
		TargetProfitPercent: profitPct,
		PercentDiscount:     discount,
		SellingPrice:        prices.SellingPrice,
		FinalPrice:          prices.FinalPrice,
		Version:             1,
	}
	if input.LowStockThreshold != nil {
		item.LowStockThreshold = *input.LowStockThreshold
	}
	if err := repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *serviceImpl) recordReceipt(ctx context.Context, repo Repository, item *models.StockItem, input StockInInput) error {
	reason := input.Reason
	if reason == "" {
		reason = enums.InventoryReasonRestock
	}
	txn := &models.InventoryTransaction{
		StockItemID:      item.ID,
		Type:             enums.InventoryTxTypeIn,
		QuantityDelta:    input.Quantity,
		UnitCost:         input.UnitCost,
		ResultingQty:     item.Quantity,
		ResultingAvgCost: item.AverageCost,
		Reason:           reason,
		ReferenceType:    optionalString(input.ReferenceType),
		ReferenceID:      optionalString(input.ReferenceID),
		ActorID:          input.ActorID,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording inventory transaction")
	}
	return nil
}

func (s *serviceImpl) StockOut(ctx context.Context, tx *gorm.DB, input StockOutInput) (*models.StockItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx != nil {
		return s.stockOut(ctx, tx, input)
	}
	var item *models.StockItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.stockOut(ctx, tx, input)
		return err
	})
	return item, err
}

func (s *serviceImpl) stockOut(ctx context.Context, tx *gorm.DB, input StockOutInput) (*models.StockItem, error) {
	repo := s.repo.WithTx(tx)

	ok, err := repo.DeductAvailable(ctx, input.StockItemID, input.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deducting stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient available stock").
			WithDetails(map[string]any{"stock_item_id": input.StockItemID.String(), "requested": input.Quantity})
	}

	item, err := repo.FindByID(ctx, input.StockItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reloading stock item")
	}

	txn := &models.InventoryTransaction{
		StockItemID:      item.ID,
		Type:             enums.InventoryTxTypeOut,
		QuantityDelta:    -input.Quantity,
		UnitCost:         item.AverageCost,
		ResultingQty:     item.Quantity,
		ResultingAvgCost: item.AverageCost,
		Reason:           input.Reason,
		ReferenceType:    optionalString(input.ReferenceType),
		ReferenceID:      optionalString(input.ReferenceID),
		ActorID:          input.ActorID,
	}
	if err := repo.AppendTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording inventory transaction")
	}

	if item.LowStockThreshold > 0 && item.Quantity <= item.LowStockThreshold {
		s.emitLowStock(ctx, tx, item)
	}
	return item, nil
}

// emitLowStock is best-effort alerting; a failed emit never blocks the sale.
func (s *serviceImpl) emitLowStock(ctx context.Context, tx *gorm.DB, item *models.StockItem) {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateStockItem,
		AggregateID:   item.ID,
		Data: map[string]any{
			"stock_item_id": item.ID.String(),
			"product_id":    item.ProductID.String(),
			"quantity":      item.Quantity,
			"threshold":     item.LowStockThreshold,
		},
	})
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("low stock event emit failed: %v", err))
	}
}

func (s *serviceImpl) Adjust(ctx context.Context, input AdjustInput) (*models.StockItem, error) {
	if input.NewQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	var item *models.StockItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.StockItemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock item")
		}
		if input.NewQuantity < current.ReservedQty {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjusted quantity below reserved quantity").
				WithDetails(map[string]any{"reserved_qty": current.ReservedQty})
		}

		delta := input.NewQuantity - current.Quantity
		expected := current.Version
		current.Quantity = input.NewQuantity
		won, err := repo.CompareAndSwap(ctx, current, expected)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating stock item")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "stock item changed concurrently, retry the adjustment")
		}
		current.Version = expected + 1

		txn := &models.InventoryTransaction{
			StockItemID:      current.ID,
			Type:             enums.InventoryTxTypeAdjust,
			QuantityDelta:    delta,
			UnitCost:         current.AverageCost,
			ResultingQty:     current.Quantity,
			ResultingAvgCost: current.AverageCost,
			Reason:           enums.InventoryReasonStocktake,
			ReferenceType:    optionalString("stocktake"),
			ActorID:          input.ActorID,
		}
		if err := repo.AppendTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording inventory transaction")
		}
		item = current
		return nil
	})
	return item, err
}

func (s *serviceImpl) Reserve(ctx context.Context, tx *gorm.DB, stockItemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).Reserve(ctx, stockItemID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserving stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient available stock").
			WithDetails(map[string]any{"stock_item_id": stockItemID.String(), "requested": qty})
	}
	return nil
}

func (s *serviceImpl) Release(ctx context.Context, tx *gorm.DB, stockItemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).Release(ctx, stockItemID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "releasing stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "release exceeds reserved quantity").
			WithDetails(map[string]any{"stock_item_id": stockItemID.String(), "requested": qty})
	}
	return nil
}

func (s *serviceImpl) Get(ctx context.Context, stockItemID uuid.UUID) (*models.StockItem, error) {
	item, err := s.repo.FindByID(ctx, stockItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock item")
	}
	return item, nil
}

func (s *serviceImpl) GetBySKU(ctx context.Context, sku SKURef) (*models.StockItem, error) {
	item, err := s.repo.FindBySKU(ctx, sku)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock item")
	}
	return item, nil
}

func (s *serviceImpl) History(ctx context.Context, stockItemID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.repo.ListTransactions(ctx, stockItemID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing inventory transactions")
	}
	return rows, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
