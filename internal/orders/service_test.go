package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
	"github.com/haiminhle/storefront-backend/pkg/sequence"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubLoyalty struct {
	added []int
}

func (s *stubLoyalty) AddPoints(_ context.Context, _ uuid.UUID, points int, _ string) error {
	s.added = append(s.added, points)
	return nil
}

// flakyLedger fails stock-in for one product so compensation paths can be
// exercised.
type flakyLedger struct {
	stockLedger
	failProduct uuid.UUID
}

func (f *flakyLedger) StockIn(ctx context.Context, tx *gorm.DB, input inventory.StockInInput) (*models.StockItem, error) {
	if input.SKU.ProductID == f.failProduct {
		return nil, errors.New("ledger write refused")
	}
	return f.stockLedger.StockIn(ctx, tx, input)
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	inv     inventory.Service
	emitter *stubEmitter
	loyalty *stubLoyalty
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.StockItem{},
		&models.InventoryTransaction{},
		&models.Order{},
		&models.OrderItem{},
		&models.Counter{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	return newFixtureWithLedger(t, db, nil)
}

func newFixtureWithLedger(t *testing.T, db *gorm.DB, wrap func(stockLedger) stockLedger) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	emitter := &stubEmitter{}
	loyaltyStub := &stubLoyalty{}

	invSvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:             inventory.NewRepository(db),
		Tx:               gormTxRunner{db: db},
		Outbox:           emitter,
		Logger:           logg,
		DefaultProfitPct: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	seq, err := sequence.NewGenerator(db)
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}

	var ledger stockLedger = invSvc
	if wrap != nil {
		ledger = wrap(invSvc)
	}

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Tx:        gormTxRunner{db: db},
		Inventory: ledger,
		Sequence:  seq,
		Outbox:    emitter,
		Loyalty:   loyaltyStub,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return &fixture{db: db, svc: svc, inv: invSvc, emitter: emitter, loyalty: loyaltyStub}
}

func (f *fixture) seedStock(t *testing.T, qty int, cost string) (inventory.SKURef, *models.StockItem) {
	t.Helper()
	sku := inventory.SKURef{ProductID: uuid.New(), VariantID: uuid.New(), SizeID: uuid.New()}
	item, err := f.inv.StockIn(context.Background(), nil, inventory.StockInInput{
		SKU:      sku,
		Quantity: qty,
		UnitCost: decimal.RequireFromString(cost),
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return sku, item
}

func (f *fixture) available(t *testing.T, sku inventory.SKURef) int {
	t.Helper()
	item, err := f.inv.GetBySKU(context.Background(), sku)
	if err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return item.AvailableQty()
}

func TestCreateCODDeductsImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 10, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.InventoryDeducted {
		t.Fatal("expected immediate deduction for pay-on-delivery")
	}
	if got := f.available(t, sku); got != 8 {
		t.Fatalf("expected available 8, got %d", got)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if len(order.Items) != 1 || !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("130")) {
		t.Fatalf("unexpected item snapshot: %+v", order.Items)
	}
	if !order.Items[0].UnitCost.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected cost snapshot 100, got %s", order.Items[0].UnitCost)
	}
	if order.Code == "" || order.PaymentRef == "" {
		t.Fatalf("expected generated code and payment ref: %+v", order)
	}
}

func TestCreateVNPayDefersDeduction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "200")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodVNPay,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.InventoryDeducted {
		t.Fatal("prepaid order must not deduct at creation")
	}
	if got := f.available(t, sku); got != 5 {
		t.Fatalf("expected available 5, got %d", got)
	}
}

func TestCreateInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 1, "100")

	_, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 3}},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	// The creating transaction rolled back entirely.
	if got := f.available(t, sku); got != 1 {
		t.Fatalf("expected available 1 after rollback, got %d", got)
	}
	var count int64
	if err := f.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders persisted, got %d", count)
	}
}

func TestCODHappyPathAwardsLoyaltyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 10, "1000")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "jacket", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	shipper := uuid.New()
	steps := []TransitionInput{
		{OrderID: order.ID, To: enums.OrderStatusConfirmed},
		{OrderID: order.ID, To: enums.OrderStatusAssignedToShipper, ShipperID: &shipper},
		{OrderID: order.ID, To: enums.OrderStatusOutForDelivery},
		{OrderID: order.ID, To: enums.OrderStatusDelivered},
	}
	var current *models.Order
	for _, step := range steps {
		current, err = f.svc.Transition(ctx, step)
		if err != nil {
			t.Fatalf("transition to %s: %v", step.To, err)
		}
	}

	if current.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected COD payment flipped to paid, got %s", current.PaymentStatus)
	}
	if !current.LoyaltyAwarded {
		t.Fatal("expected loyalty gate flipped")
	}
	// 2 * 1300 = 2600 total -> 2 points.
	if len(f.loyalty.added) != 1 || f.loyalty.added[0] != 2 {
		t.Fatalf("expected one accrual of 2 points, got %v", f.loyalty.added)
	}

	// A retried delivered write loses the status CAS and never re-awards.
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusDelivered})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on retried delivery, got %v", err)
	}
	if len(f.loyalty.added) != 1 {
		t.Fatalf("loyalty accrued twice: %v", f.loyalty.added)
	}
}

func TestPrepaidDeferredDeductionAtAssignment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodVNPay,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Unpaid prepaid orders cannot confirm.
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusConfirmed})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for unpaid order, got %v", err)
	}

	applied, err := f.svc.ApplyPaymentSuccess(ctx, order.ID, "VNP001", time.Now())
	if err != nil || !applied {
		t.Fatalf("apply payment: applied=%v err=%v", applied, err)
	}

	// Payment auto-confirmed the order; stock still untouched.
	reloaded, err := f.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected auto-confirm, got %s", reloaded.Status)
	}
	if got := f.available(t, sku); got != 5 {
		t.Fatalf("expected available 5 before assignment, got %d", got)
	}

	shipper := uuid.New()
	after, err := f.svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		To:        enums.OrderStatusAssignedToShipper,
		ShipperID: &shipper,
	})
	if err != nil {
		t.Fatalf("assign shipper: %v", err)
	}
	if !after.InventoryDeducted {
		t.Fatal("expected deduction flag after assignment")
	}
	if got := f.available(t, sku); got != 4 {
		t.Fatalf("expected available 4 after assignment, got %d", got)
	}
}

func TestApplyPaymentSuccessIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodVNPay,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	applied, err := f.svc.ApplyPaymentSuccess(ctx, order.ID, "VNP002", time.Now())
	if err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}
	applied, err = f.svc.ApplyPaymentSuccess(ctx, order.ID, "VNP002", time.Now())
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if applied {
		t.Fatal("second application must lose the processed-flag gate")
	}

	// A racing failure report after success is also a no-op.
	applied, err = f.svc.ApplyPaymentFailure(ctx, order.ID, "VNP002", "24")
	if err != nil {
		t.Fatalf("failure after success: %v", err)
	}
	if applied {
		t.Fatal("failure must not overwrite a processed payment")
	}
	reloaded, _ := f.svc.Get(ctx, order.ID)
	if reloaded.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", reloaded.PaymentStatus)
	}
}

func TestTransitionRejectsWorkflowOnlyTargets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, target := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusReturned} {
		_, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: target})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %s, got %v", target, err)
		}
	}
}

func TestConfirmBlockedByOpenCancelRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("has_cancel_request", true).Error; err != nil {
		t.Fatalf("set flag: %v", err)
	}

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusConfirmed})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRestoreCompensatesOnPartialFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	var failProduct uuid.UUID
	f := newFixtureWithLedger(t, db, func(inner stockLedger) stockLedger {
		return &flakyLedger{stockLedger: inner, failProduct: failProduct}
	})
	ctx := context.Background()

	skuA, _ := f.seedStock(t, 10, "100")
	skuB, _ := f.seedStock(t, 10, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items: []CreateOrderItemInput{
			{SKU: skuA, Name: "a", Qty: 2},
			{SKU: skuB, Name: "b", Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Arm the failure for the second line only, after creation deducted both.
	f.svc.(*serviceImpl).inventory.(*flakyLedger).failProduct = skuB.ProductID

	err = f.svc.RestoreInventory(ctx, order.ID, nil, enums.InventoryReasonCancelled)
	if err == nil {
		t.Fatal("expected restoration to fail")
	}

	// Item A was restored then compensated back; the ledger holds no partial
	// restoration and the flag never flipped.
	if got := f.available(t, skuA); got != 8 {
		t.Fatalf("expected available 8 after compensation, got %d", got)
	}
	if got := f.available(t, skuB); got != 7 {
		t.Fatalf("expected available 7, got %d", got)
	}
	reloaded, _ := f.svc.Get(ctx, order.ID)
	if reloaded.InventoryRestored {
		t.Fatal("restored flag must stay false after partial failure")
	}

	var rollbacks int64
	err = f.db.Model(&models.InventoryTransaction{}).
		Where("reason = ?", enums.InventoryReasonRollback).
		Count(&rollbacks).Error
	if err != nil {
		t.Fatalf("count rollbacks: %v", err)
	}
	if rollbacks != 1 {
		t.Fatalf("expected one rollback ledger entry, got %d", rollbacks)
	}
}

func TestConfirmReturnRestoresExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 10, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.ApplyCancellation(ctx, tx, order.ID, "changed my mind", nil)
		return err
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.available(t, sku); got != 8 {
		t.Fatalf("stock must stay deducted until staff confirmation, got %d", got)
	}

	staff := uuid.New()
	confirmed, err := f.svc.ConfirmReturn(ctx, order.ID, &staff)
	if err != nil {
		t.Fatalf("confirm return: %v", err)
	}
	if !confirmed.ReturnConfirmed || !confirmed.InventoryRestored {
		t.Fatalf("expected both gates flipped: %+v", confirmed)
	}
	if got := f.available(t, sku); got != 10 {
		t.Fatalf("expected available 10 after restoration, got %d", got)
	}

	_, err = f.svc.ConfirmReturn(ctx, order.ID, &staff)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on second confirmation, got %v", err)
	}
	if got := f.available(t, sku); got != 10 {
		t.Fatalf("stock restored twice, available %d", got)
	}
}

func TestFailedDeliveryCloseOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	sku, _ := f.seedStock(t, 5, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	shipper := uuid.New()
	steps := []TransitionInput{
		{OrderID: order.ID, To: enums.OrderStatusConfirmed},
		{OrderID: order.ID, To: enums.OrderStatusAssignedToShipper, ShipperID: &shipper},
		{OrderID: order.ID, To: enums.OrderStatusOutForDelivery},
	}
	for _, step := range steps {
		if _, err := f.svc.Transition(ctx, step); err != nil {
			t.Fatalf("transition to %s: %v", step.To, err)
		}
	}

	// Still out for delivery: cancelled stays a workflow-only target.
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error mid-delivery, got %v", err)
	}

	for _, to := range []enums.OrderStatus{
		enums.OrderStatusDeliveryFailed,
		enums.OrderStatusReturningToWarehouse,
	} {
		if _, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: to}); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	// Back at the warehouse the staff close-out is the direct exception.
	closed, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCancelled,
		Note:    "customer unreachable",
	})
	if err != nil {
		t.Fatalf("close out: %v", err)
	}
	if closed.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", closed.Status)
	}
	if closed.CanceledAt == nil {
		t.Fatal("expected canceled_at stamped")
	}
	if closed.CancelReason == nil || *closed.CancelReason != "customer unreachable" {
		t.Fatalf("expected note recorded as cancel reason, got %v", closed.CancelReason)
	}

	// Restoration still waits on the staff confirmation.
	if got := f.available(t, sku); got != 4 {
		t.Fatalf("expected stock still deducted, got %d", got)
	}
	staff := uuid.New()
	confirmed, err := f.svc.ConfirmReturn(ctx, order.ID, &staff)
	if err != nil {
		t.Fatalf("confirm return: %v", err)
	}
	if !confirmed.InventoryRestored {
		t.Fatal("expected restoration after confirmation")
	}
	if got := f.available(t, sku); got != 5 {
		t.Fatalf("expected available 5, got %d", got)
	}
}

func TestConfirmReturnRetriesAfterRestoreFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	f := newFixtureWithLedger(t, db, func(inner stockLedger) stockLedger {
		return &flakyLedger{stockLedger: inner}
	})
	ctx := context.Background()
	sku, _ := f.seedStock(t, 10, "100")

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "12 Nguyen Trai",
		Items:           []CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.ApplyCancellation(ctx, tx, order.ID, "changed my mind", nil)
		return err
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ledger := f.svc.(*serviceImpl).inventory.(*flakyLedger)
	ledger.failProduct = sku.ProductID

	staff := uuid.New()
	if _, err := f.svc.ConfirmReturn(ctx, order.ID, &staff); err == nil {
		t.Fatal("expected confirmation to fail while the ledger is down")
	}
	reloaded, err := f.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.ReturnConfirmed || reloaded.InventoryRestored {
		t.Fatalf("expected confirmed but unrestored, got %+v", reloaded)
	}

	// Ledger back up: the retry loses the flag race but still restores.
	ledger.failProduct = uuid.Nil
	confirmed, err := f.svc.ConfirmReturn(ctx, order.ID, &staff)
	if err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if !confirmed.InventoryRestored {
		t.Fatal("expected restoration on retry")
	}
	if got := f.available(t, sku); got != 10 {
		t.Fatalf("expected available 10 after retry, got %d", got)
	}

	// A third confirmation is the genuinely-done case.
	_, err = f.svc.ConfirmReturn(ctx, order.ID, &staff)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict once restored, got %v", err)
	}
}

func TestHistoryDedupAndCap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.svc.(*serviceImpl)
	repo := NewRepository(f.db)

	order := &models.Order{
		Code:            "ORD-000099",
		UserID:          uuid.New(),
		Status:          enums.OrderStatusPending,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentRef:      "ORD-000099-aa",
		ShippingAddress: "x",
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	now := time.Now()
	svc.appendHistory(context.Background(), repo, order, models.StatusChange{
		Status: enums.OrderStatusConfirmed, ChangedAt: now,
	})
	svc.appendHistory(context.Background(), repo, order, models.StatusChange{
		Status: enums.OrderStatusConfirmed, ChangedAt: now.Add(time.Second),
	})
	if len(order.History) != 1 {
		t.Fatalf("expected dedup to drop the near-duplicate, got %d entries", len(order.History))
	}
	svc.appendHistory(context.Background(), repo, order, models.StatusChange{
		Status: enums.OrderStatusConfirmed, ChangedAt: now.Add(10 * time.Second),
	})
	if len(order.History) != 2 {
		t.Fatalf("expected a later duplicate to append, got %d entries", len(order.History))
	}

	// The trail must survive a round trip through the column, not just the
	// in-memory copy.
	var stored models.Order
	if err := f.db.Where("id = ?", order.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(stored.History) != 2 {
		t.Fatalf("expected 2 persisted entries, got %d", len(stored.History))
	}
	if stored.History[1].Status != enums.OrderStatusConfirmed {
		t.Fatalf("unexpected persisted entry: %+v", stored.History[1])
	}
}

func TestListByUserPagesWithCursor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		order := &models.Order{
			Code:            fmt.Sprintf("ORD-00020%d", i),
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   enums.PaymentMethodCOD,
			PaymentRef:      fmt.Sprintf("ORD-00020%d-aa", i),
			ShippingAddress: "x",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := f.db.Create(order).Error; err != nil {
			t.Fatalf("seed order %d: %v", i, err)
		}
	}
	other := &models.Order{
		Code:            "ORD-000299",
		UserID:          uuid.New(),
		Status:          enums.OrderStatusPending,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentRef:      "ORD-000299-aa",
		ShippingAddress: "x",
	}
	if err := f.db.Create(other).Error; err != nil {
		t.Fatalf("seed other order: %v", err)
	}

	ctx := context.Background()
	page1, next, err := f.svc.ListByUser(ctx, userID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page1) != 2 || next == "" {
		t.Fatalf("expected a full first page with a cursor, got %d rows", len(page1))
	}
	if page1[0].Code != "ORD-000204" || page1[1].Code != "ORD-000203" {
		t.Fatalf("expected newest-first ordering, got %s, %s", page1[0].Code, page1[1].Code)
	}

	page2, next, err := f.svc.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page2) != 2 || next == "" {
		t.Fatalf("expected a full second page with a cursor, got %d rows", len(page2))
	}
	if page2[0].Code != "ORD-000202" || page2[1].Code != "ORD-000201" {
		t.Fatalf("unexpected second page: %s, %s", page2[0].Code, page2[1].Code)
	}

	page3, next, err := f.svc.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(page3) != 1 || next != "" {
		t.Fatalf("expected a final page of one row and no cursor, got %d rows", len(page3))
	}
	if page3[0].Code != "ORD-000200" {
		t.Fatalf("unexpected last row %s", page3[0].Code)
	}

	if _, _, err := f.svc.ListByUser(ctx, userID, pagination.Params{Cursor: "not base64"}); err == nil {
		t.Fatal("expected malformed cursor to be rejected")
	}
}
