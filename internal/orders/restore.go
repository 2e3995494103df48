package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
)

// RestoreInventory puts every line item's quantity back into the ledger. The
// per-item stock-ins are independent writes; when item k of n fails, the
// already-restored items 1..k-1 are re-deducted so the ledger never holds a
// partial restoration for one order. The restored flag flips only after every
// item succeeded.
func (s *serviceImpl) RestoreInventory(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason enums.InventoryReason) error {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.InventoryDeducted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order never deducted inventory")
	}
	if order.InventoryRestored {
		// Already done; idempotent no-op.
		return nil
	}

	done := make([]restoredLine, 0, len(order.Items))

	for _, line := range order.Items {
		stock, err := s.inventory.GetBySKU(ctx, inventory.SKURef{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SizeID:    line.SizeID,
		})
		if err == nil {
			_, err = s.inventory.StockIn(ctx, nil, inventory.StockInInput{
				SKU: inventory.SKURef{
					ProductID: line.ProductID,
					VariantID: line.VariantID,
					SizeID:    line.SizeID,
				},
				Quantity:      line.Qty,
				UnitCost:      line.UnitCost,
				Reason:        reason,
				ReferenceType: "order",
				ReferenceID:   order.ID.String(),
				ActorID:       actorID,
			})
			if err == nil {
				done = append(done, restoredLine{stockItemID: stock.ID, qty: line.Qty})
				continue
			}
		}

		s.compensate(ctx, order.Code, done, actorID)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restoring inventory").
			WithDetails(map[string]any{"order_code": order.Code, "product_id": line.ProductID.String()})
	}

	won, err := s.repo.UpdateWhere(ctx, order.ID,
		"inventory_restored = ? AND inventory_deducted = ?", []any{false, true},
		map[string]any{"inventory_restored": true})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flipping restoration flag")
	}
	if !won {
		// A concurrent restoration already flipped the flag; this run's
		// stock-ins would double-restore, so take them back.
		s.compensate(ctx, order.Code, done, actorID)
		return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory already restored").
			WithDetails(map[string]any{"order_code": order.Code})
	}
	return nil
}

type restoredLine struct {
	stockItemID uuid.UUID
	qty         int
}

// compensate re-deducts items that were already restored when a later item
// failed. Failures here are a real ledger/order divergence and are logged
// critical for operator follow-up.
func (s *serviceImpl) compensate(ctx context.Context, orderCode string, done []restoredLine, actorID *uuid.UUID) {
	var errs error
	for _, d := range done {
		_, err := s.inventory.StockOut(ctx, nil, inventory.StockOutInput{
			StockItemID:   d.stockItemID,
			Quantity:      d.qty,
			Reason:        enums.InventoryReasonRollback,
			ReferenceType: "order",
			ReferenceID:   orderCode,
			ActorID:       actorID,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stock item %s qty %d: %w", d.stockItemID, d.qty, err))
		}
	}
	if errs != nil {
		s.logg.Critical(ctx, fmt.Sprintf("inventory compensation failed for order %s, ledger diverged", orderCode), errs)
	}
}
