package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
)

// ApplyPaymentSuccess records a successful gateway payment. The processed
// flag is flipped in the same conditional update that writes the payment
// fields, so racing channels apply the effect at most once. Returns false
// when another writer already processed the payment.
func (s *serviceImpl) ApplyPaymentSuccess(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, paidAt time.Time) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
		}

		won, err := repo.UpdateWhere(ctx, orderID,
			"payment_processed = ?", []any{false},
			map[string]any{
				"payment_status":    enums.PaymentStatusPaid,
				"payment_processed": true,
				"gateway_txn_id":    gatewayTxnID,
				"paid_at":           paidAt,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "applying payment")
		}
		if !won {
			return nil
		}
		applied = true

		s.appendHistory(ctx, repo, order, models.StatusChange{
			Status:    order.Status,
			Note:      fmt.Sprintf("payment received, gateway txn %s", gatewayTxnID),
			ChangedAt: time.Now(),
		})

		// Auto-confirm a still-pending order, unless a cancel request is
		// waiting on adjudication.
		if order.Status == enums.OrderStatusPending && !order.HasCancelRequest {
			confirmed, err := repo.CASStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusConfirmed, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auto-confirming order")
			}
			if confirmed {
				s.appendHistory(ctx, repo, order, models.StatusChange{
					Status:    enums.OrderStatusConfirmed,
					Note:      "auto-confirmed on payment",
					ChangedAt: time.Now(),
				})
			}
		}

		return s.emit(ctx, tx, order, enums.EventOrderPaid, map[string]any{
			"order_code":     order.Code,
			"gateway_txn_id": gatewayTxnID,
		})
	})
	return applied, err
}

// ApplyPaymentFailure records a failed gateway payment. No inventory action
// is needed: prepaid deduction is deferred until shipper assignment, so a
// failed payment has nothing to compensate.
func (s *serviceImpl) ApplyPaymentFailure(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, responseCode string) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
		}

		won, err := repo.UpdateWhere(ctx, orderID,
			"payment_processed = ?", []any{false},
			map[string]any{
				"payment_status":    enums.PaymentStatusFailed,
				"payment_processed": true,
				"gateway_txn_id":    gatewayTxnID,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording payment failure")
		}
		if !won {
			return nil
		}
		applied = true

		s.appendHistory(ctx, repo, order, models.StatusChange{
			Status:    order.Status,
			Note:      fmt.Sprintf("payment failed, gateway code %s", responseCode),
			ChangedAt: time.Now(),
		})

		return s.emit(ctx, tx, order, enums.EventOrderPaymentFailed, map[string]any{
			"order_code":    order.Code,
			"response_code": responseCode,
		})
	})
	return applied, err
}
