package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
)

const (
	// historyDedupWindow suppresses near-duplicate history entries produced
	// by retried writes of the same transition.
	historyDedupWindow = 5 * time.Second

	defaultHistoryCap = 50

	// loyaltyPointsDivisor converts order total into accrued points.
	loyaltyPointsDivisor = 1000
)

// CreateOrderItemInput is one cart line at checkout.
type CreateOrderItemInput struct {
	SKU  inventory.SKURef
	Name string
	Qty  int
}

// CreateOrderInput is the checkout payload for order creation.
type CreateOrderInput struct {
	UserID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	ShippingAddress string
	ShippingFee     decimal.Decimal
	// CouponCode is stored verbatim; discount arithmetic lives with the
	// promotion service upstream.
	CouponCode *string
	Items      []CreateOrderItemInput
}

// TransitionInput drives a direct status transition.
type TransitionInput struct {
	OrderID   uuid.UUID
	To        enums.OrderStatus
	ActorID   *uuid.UUID
	Note      string
	ShipperID *uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	GetBySKU(ctx context.Context, sku inventory.SKURef) (*models.StockItem, error)
	StockOut(ctx context.Context, tx *gorm.DB, input inventory.StockOutInput) (*models.StockItem, error)
	StockIn(ctx context.Context, tx *gorm.DB, input inventory.StockInInput) (*models.StockItem, error)
}

type codeGenerator interface {
	NextOrderCode(ctx context.Context) (string, error)
}

type pointsLedger interface {
	AddPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error
}

// Service owns the order lifecycle: creation, status transitions, inventory
// timing, payment application, and the once-only side-effect gates.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByCode(ctx context.Context, code string) (*models.Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	// Transition applies a direct status change. Entry into cancelled or
	// returned is rejected here and flows through the workflow services,
	// with one exception: closing out a failed delivery
	// (returning_to_warehouse -> cancelled) is a direct staff action.
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	// ConfirmReturn is the staff action acknowledging goods physically back
	// in the warehouse; it triggers inventory restoration.
	ConfirmReturn(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error)

	// ApplyCancellation is invoked by the cancellation workflow inside its
	// transaction. Restoration, when due, happens after commit via
	// RestoreInventory.
	ApplyCancellation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error)
	// MarkReturned is invoked by the return workflow when a return completes.
	MarkReturned(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID) error
	// SetCancelFlag marks or clears the order's open-cancel-request flag.
	SetCancelFlag(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, open bool) error
	// RestoreInventory puts an order's deducted stock back, item by item,
	// compensating already-restored items when a later one fails.
	RestoreInventory(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason enums.InventoryReason) error

	// ApplyPaymentSuccess and ApplyPaymentFailure are the gateway
	// reconciliation hooks. Both flip the processed flag at most once.
	ApplyPaymentSuccess(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, paidAt time.Time) (bool, error)
	ApplyPaymentFailure(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, responseCode string) (bool, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Inventory  stockLedger
	Sequence   codeGenerator
	Outbox     eventEmitter
	Loyalty    pointsLedger
	Logger     *logger.Logger
	HistoryCap int
}

type serviceImpl struct {
	repo       Repository
	tx         txRunner
	inventory  stockLedger
	sequence   codeGenerator
	outbox     eventEmitter
	loyalty    pointsLedger
	logg       *logger.Logger
	historyCap int
}

// NewService wires the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders: Repo is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("orders: Tx is required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("orders: Inventory is required")
	}
	if params.Sequence == nil {
		return nil, fmt.Errorf("orders: Sequence is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("orders: Outbox is required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("orders: Loyalty is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("orders: Logger is required")
	}
	histCap := params.HistoryCap
	if histCap <= 0 {
		histCap = defaultHistoryCap
	}
	return &serviceImpl{
		repo:       params.Repo,
		tx:         params.Tx,
		inventory:  params.Inventory,
		sequence:   params.Sequence,
		outbox:     params.Outbox,
		loyalty:    params.Loyalty,
		logg:       params.Logger,
		historyCap: histCap,
	}, nil
}

func (s *serviceImpl) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.ShippingAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	code, err := s.sequence.NextOrderCode(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generating order code")
	}
	paymentRef, err := newPaymentRef(code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating payment ref")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		subtotal := decimal.Zero
		lines := make([]models.OrderItem, 0, len(input.Items))
		type deduction struct {
			stockItemID uuid.UUID
			qty         int
		}
		deductions := make([]deduction, 0, len(input.Items))

		for _, line := range input.Items {
			stock, err := s.inventory.GetBySKU(ctx, line.SKU)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
					return pkgerrors.New(pkgerrors.CodeValidation, "item no longer available").
						WithDetails(map[string]any{"product_id": line.SKU.ProductID.String()})
				}
				return err
			}
			lineTotal := stock.FinalPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
			lines = append(lines, models.OrderItem{
				ProductID: line.SKU.ProductID,
				VariantID: line.SKU.VariantID,
				SizeID:    line.SKU.SizeID,
				Name:      line.Name,
				Qty:       line.Qty,
				UnitPrice: stock.FinalPrice,
				UnitCost:  stock.AverageCost,
				Total:     lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
			deductions = append(deductions, deduction{stockItemID: stock.ID, qty: line.Qty})
		}

		now := time.Now()
		order = &models.Order{
			Code:            code,
			UserID:          input.UserID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentRef:      paymentRef,
			ShippingAddress: input.ShippingAddress,
			CouponCode:      input.CouponCode,
			Subtotal:        subtotal,
			ShippingFee:     input.ShippingFee,
			Total:           subtotal.Add(input.ShippingFee),
			History: models.StatusHistory{{
				Status:    enums.OrderStatusPending,
				Note:      "order created",
				ChangedAt: now,
			}},
			Items: lines,
		}

		// Pay-on-delivery deducts stock up front; prepaid orders defer
		// deduction until a shipper is assigned.
		if input.PaymentMethod == enums.PaymentMethodCOD {
			order.InventoryDeducted = true
		}

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating order")
		}

		if input.PaymentMethod == enums.PaymentMethodCOD {
			for _, d := range deductions {
				_, err := s.inventory.StockOut(ctx, tx, inventory.StockOutInput{
					StockItemID:   d.stockItemID,
					Quantity:      d.qty,
					Reason:        enums.InventoryReasonSale,
					ReferenceType: "order",
					ReferenceID:   order.ID.String(),
					ActorID:       &input.UserID,
				})
				if err != nil {
					return err
				}
			}
		}

		return s.emit(ctx, tx, order, enums.EventOrderCreated, map[string]any{
			"order_code":     order.Code,
			"payment_method": order.PaymentMethod.String(),
			"total":          order.Total.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *serviceImpl) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	order, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *serviceImpl) GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.repo.FindByPaymentRef(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	return order, nil
}

func (s *serviceImpl) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "malformed cursor")
	}

	limit := pagination.LimitWithBuffer(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}

	next := ""
	if len(rows) == limit {
		rows = rows[:limit-1]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *serviceImpl) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if IsWorkflowOnly(input.To) && !IsFailedDeliveryCloseOut(order.Status, input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is set by its workflow, not directly").
			WithDetails(map[string]any{"status": input.To.String()})
	}
	if !CanTransition(order.Status, input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]any{"from": order.Status.String(), "to": input.To.String()})
	}
	if err := s.checkPreconditions(order, input); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	deduct := false
	switch input.To {
	case enums.OrderStatusAssignedToShipper:
		updates["shipper_id"] = input.ShipperID
		if !order.InventoryDeducted {
			deduct = true
			updates["inventory_deducted"] = true
		}
	case enums.OrderStatusDelivered:
		now := time.Now()
		updates["delivered_at"] = now
		if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus == enums.PaymentStatusPending {
			updates["payment_status"] = enums.PaymentStatusPaid
			updates["paid_at"] = now
			updates["payment_processed"] = true
		}
	case enums.OrderStatusCancelled:
		// Failed-delivery close-out. Restoration still waits for the staff
		// ConfirmReturn acknowledging the goods physically back.
		updates["canceled_at"] = time.Now()
		if input.Note != "" {
			updates["cancel_reason"] = input.Note
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.CASStatus(ctx, order.ID, order.Status, input.To, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, re-read and retry").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}

		if deduct {
			for _, line := range order.Items {
				stock, err := s.inventory.GetBySKU(ctx, inventory.SKURef{
					ProductID: line.ProductID,
					VariantID: line.VariantID,
					SizeID:    line.SizeID,
				})
				if err != nil {
					return err
				}
				_, err = s.inventory.StockOut(ctx, tx, inventory.StockOutInput{
					StockItemID:   stock.ID,
					Quantity:      line.Qty,
					Reason:        enums.InventoryReasonSale,
					ReferenceType: "order",
					ReferenceID:   order.ID.String(),
					ActorID:       input.ActorID,
				})
				if err != nil {
					return err
				}
			}
		}

		s.appendHistory(ctx, repo, order, models.StatusChange{
			Status:    input.To,
			Note:      input.Note,
			ActorID:   input.ActorID,
			ChangedAt: time.Now(),
		})

		eventType := enums.EventOrderStatusChanged
		switch input.To {
		case enums.OrderStatusDelivered:
			eventType = enums.EventOrderDelivered
		case enums.OrderStatusCancelled:
			eventType = enums.EventOrderCancelled
		}
		return s.emit(ctx, tx, order, eventType, map[string]any{
			"order_code": order.Code,
			"from":       order.Status.String(),
			"to":         input.To.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if input.To == enums.OrderStatusDelivered {
		s.awardLoyaltyOnce(ctx, order)
	}

	return s.Get(ctx, order.ID)
}

func (s *serviceImpl) checkPreconditions(order *models.Order, input TransitionInput) error {
	switch input.To {
	case enums.OrderStatusConfirmed:
		if order.HasCancelRequest {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "resolve the open cancel request first")
		}
		if order.PaymentMethod == enums.PaymentMethodVNPay && order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "prepaid order is not paid yet")
		}
	case enums.OrderStatusAssignedToShipper:
		if input.ShipperID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipper is required for assignment")
		}
	}
	return nil
}

// awardLoyaltyOnce flips the loyalty gate with a conditional update so retried
// delivered transitions award points a single time. Accrual failures are
// logged, never surfaced.
func (s *serviceImpl) awardLoyaltyOnce(ctx context.Context, order *models.Order) {
	points := int(order.Total.Div(decimal.NewFromInt(loyaltyPointsDivisor)).IntPart())
	if points <= 0 {
		return
	}
	won, err := s.repo.UpdateWhere(ctx, order.ID,
		"loyalty_awarded = ?", []any{false},
		map[string]any{"loyalty_awarded": true, "loyalty_points": points})
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("loyalty gate update failed for order %s: %v", order.Code, err))
		return
	}
	if !won {
		return
	}
	if err := s.loyalty.AddPoints(ctx, order.UserID, points, order.Code); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("loyalty accrual failed for order %s: %v", order.Code, err))
	}
}

func (s *serviceImpl) ConfirmReturn(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusCancelled, enums.OrderStatusReturningToWarehouse, enums.OrderStatusReturned:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting return confirmation").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if !order.InventoryDeducted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order never deducted inventory")
	}

	won, err := s.repo.UpdateWhere(ctx, orderID,
		"return_confirmed = ?", []any{false},
		map[string]any{"return_confirmed": true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirming return")
	}
	if !won && order.InventoryRestored {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return already confirmed")
	}
	// A confirmed flag with restoration still pending means an earlier
	// restore attempt failed and compensated; the retry runs it again.

	reason := enums.InventoryReasonReturn
	if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusReturningToWarehouse {
		reason = enums.InventoryReasonCancelled
	}
	if err := s.RestoreInventory(ctx, orderID, actorID, reason); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *serviceImpl) ApplyCancellation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in its current state").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	now := time.Now()
	won, err := repo.CASStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, map[string]any{
		"cancel_reason":      reason,
		"canceled_at":        now,
		"has_cancel_request": false,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling order")
	}
	if !won {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, re-read and retry")
	}

	s.appendHistory(ctx, repo, order, models.StatusChange{
		Status:    enums.OrderStatusCancelled,
		Note:      reason,
		ActorID:   actorID,
		ChangedAt: now,
	})

	if err := s.emit(ctx, tx, order, enums.EventOrderCancelled, map[string]any{
		"order_code": order.Code,
		"reason":     reason,
	}); err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusCancelled
	return order, nil
}

func (s *serviceImpl) MarkReturned(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order")
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	won, err := repo.CASStatus(ctx, order.ID, enums.OrderStatusDelivered, enums.OrderStatusReturned, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking order returned")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, re-read and retry")
	}

	s.appendHistory(ctx, repo, order, models.StatusChange{
		Status:    enums.OrderStatusReturned,
		Note:      "return completed",
		ActorID:   actorID,
		ChangedAt: time.Now(),
	})

	return s.emit(ctx, tx, order, enums.EventOrderReturned, map[string]any{
		"order_code": order.Code,
	})
}

func (s *serviceImpl) SetCancelFlag(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, open bool) error {
	return s.repo.WithTx(tx).SetFlags(ctx, orderID, map[string]any{"has_cancel_request": open})
}

// appendHistory adds a status entry, skipping a near-duplicate of the same
// status inside the dedup window and trimming the log to its cap. History is
// best-effort: failures are logged and never abort the transition.
func (s *serviceImpl) appendHistory(ctx context.Context, repo Repository, order *models.Order, entry models.StatusChange) {
	history := order.History
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Status == entry.Status && entry.ChangedAt.Sub(last.ChangedAt) < historyDedupWindow {
			return
		}
	}
	history = append(history, entry)
	if len(history) > s.historyCap {
		history = history[len(history)-s.historyCap:]
	}
	if err := repo.SaveHistory(ctx, order.ID, history); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("saving status history for order %s: %v", order.Code, err))
		return
	}
	order.History = history
}

func (s *serviceImpl) emit(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType, data map[string]any) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		RecipientID:   order.UserID,
		Data:          data,
	})
}

func newPaymentRef(code string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", code, hex.EncodeToString(buf)), nil
}
