package returns

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
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

type deduction struct {
	userID uuid.UUID
	points int
	ref    string
}

type stubLoyalty struct {
	deductions []deduction
}

func (stubLoyalty) AddPoints(context.Context, uuid.UUID, int, string) error { return nil }

func (s *stubLoyalty) DeductPoints(_ context.Context, userID uuid.UUID, points int, ref string) error {
	s.deductions = append(s.deductions, deduction{userID: userID, points: points, ref: ref})
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	orders  orders.Service
	inv     inventory.Service
	loyalty *stubLoyalty
	emitter *stubEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:returns_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.StockItem{},
		&models.InventoryTransaction{},
		&models.Order{},
		&models.OrderItem{},
		&models.ReturnRequest{},
		&models.Counter{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	emitter := &stubEmitter{}
	loyalty := &stubLoyalty{}

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
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(db),
		Tx:        gormTxRunner{db: db},
		Inventory: invSvc,
		Sequence:  seq,
		Outbox:    emitter,
		Loyalty:   loyalty,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Tx:       gormTxRunner{db: db},
		Orders:   orderSvc,
		Sequence: seq,
		Outbox:   emitter,
		Loyalty:  loyalty,
		Logger:   logg,
		Config: config.ReturnsConfig{
			ExpiryWindow: 168 * time.Hour,
			ShippingFee:  30,
			MinImages:    1,
			MaxImages:    5,
		},
	})
	if err != nil {
		t.Fatalf("returns service: %v", err)
	}
	return &fixture{db: db, svc: svc, orders: orderSvc, inv: invSvc, loyalty: loyalty, emitter: emitter}
}

// deliveredOrder seeds stock and walks a COD order to delivered. With a unit
// cost of 1000 the order totals 2600 and accrues 2 points.
func (f *fixture) deliveredOrder(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()
	sku := inventory.SKURef{ProductID: uuid.New(), VariantID: uuid.New(), SizeID: uuid.New()}
	if _, err := f.inv.StockIn(ctx, nil, inventory.StockInInput{
		SKU: sku, Quantity: 10, UnitCost: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	order, err := f.orders.Create(ctx, orders.CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "71 Le Loi",
		Items:           []orders.CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	shipper := uuid.New()
	for _, to := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusAssignedToShipper,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	} {
		if _, err := f.orders.Transition(ctx, orders.TransitionInput{
			OrderID: order.ID, To: to, ShipperID: &shipper,
		}); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}
	reloaded, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return reloaded
}

func (f *fixture) createRequest(t *testing.T, order *models.Order) *models.ReturnRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:      order.ID,
		RequestedBy:  order.UserID,
		Reason:       "seam came apart",
		Images:       []string{"https://cdn.example.com/r1.jpg"},
		RefundMethod: enums.RefundMethodCash,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

// backdate pushes a request's expiry into the past.
func (f *fixture) backdate(t *testing.T, id uuid.UUID) {
	t.Helper()
	err := f.db.Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Update("expires_at", time.Now().Add(-time.Hour)).Error
	if err != nil {
		t.Fatalf("backdate request: %v", err)
	}
}

func TestCreateComputesRefundAndExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)

	if req.Status != enums.ReturnStatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if req.Code == "" {
		t.Fatal("expected a generated code")
	}
	// Refund is the order total minus the return shipping fee.
	want := order.Total.Sub(decimal.NewFromInt(30))
	if !req.RefundAmount.Equal(want) {
		t.Fatalf("expected refund %s, got %s", want, req.RefundAmount)
	}
	remaining := time.Until(req.ExpiresAt)
	if remaining < 167*time.Hour || remaining > 168*time.Hour {
		t.Fatalf("expected expiry about a week out, got %s", remaining)
	}

	var sawRequested bool
	for _, ev := range f.emitter.events {
		if ev.EventType == enums.EventReturnRequested && ev.AggregateID == req.ID {
			sawRequested = true
		}
	}
	if !sawRequested {
		t.Fatal("expected a return.requested event")
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	cases := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{
			name: "no images",
			input: CreateInput{
				OrderID: order.ID, RequestedBy: order.UserID,
				Reason: "faded", RefundMethod: enums.RefundMethodCash,
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "too many images",
			input: CreateInput{
				OrderID: order.ID, RequestedBy: order.UserID,
				Reason:       "faded",
				Images:       []string{"a", "b", "c", "d", "e", "f"},
				RefundMethod: enums.RefundMethodCash,
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "bank transfer without account",
			input: CreateInput{
				OrderID: order.ID, RequestedBy: order.UserID,
				Reason:       "faded",
				Images:       []string{"a"},
				RefundMethod: enums.RefundMethodBankTransfer,
			},
			code: pkgerrors.CodeValidation,
		},
		{
			name: "another customer's order",
			input: CreateInput{
				OrderID: order.ID, RequestedBy: uuid.New(),
				Reason:       "faded",
				Images:       []string{"a"},
				RefundMethod: enums.RefundMethodCash,
			},
			code: pkgerrors.CodeForbidden,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.input)
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateRequiresDeliveredOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	sku := inventory.SKURef{ProductID: uuid.New(), VariantID: uuid.New(), SizeID: uuid.New()}
	if _, err := f.inv.StockIn(ctx, nil, inventory.StockInInput{
		SKU: sku, Quantity: 5, UnitCost: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	order, err := f.orders.Create(ctx, orders.CreateOrderInput{
		UserID:          uuid.New(),
		PaymentMethod:   enums.PaymentMethodCOD,
		ShippingAddress: "71 Le Loi",
		Items:           []orders.CreateOrderItemInput{{SKU: sku, Name: "tee", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = f.svc.Create(ctx, CreateInput{
		OrderID: order.ID, RequestedBy: order.UserID,
		Reason: "changed mind", Images: []string{"a"},
		RefundMethod: enums.RefundMethodCash,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDuplicateActiveRequestRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.deliveredOrder(t)
	f.createRequest(t, order)

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID: order.ID, RequestedBy: order.UserID,
		Reason: "second attempt", Images: []string{"a"},
		RefundMethod: enums.RefundMethodCash,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDuplicateRequest) {
		t.Fatalf("expected duplicate request error, got %v", err)
	}
}

func TestFullLifecycleClawsBackLoyalty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)

	staff := uuid.New()
	shipper := uuid.New()

	if _, err := f.svc.Approve(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff, Note: "ok"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assigned, err := f.svc.AssignShipper(ctx, AssignShipperInput{RequestID: req.ID, ShipperID: shipper, AssignedBy: staff})
	if err != nil {
		t.Fatalf("assign shipper: %v", err)
	}
	if assigned.ShipperID == nil || *assigned.ShipperID != shipper {
		t.Fatalf("expected shipper recorded, got %v", assigned.ShipperID)
	}
	if _, err := f.svc.MarkReceived(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff}); err != nil {
		t.Fatalf("mark received: %v", err)
	}
	if _, err := f.svc.MarkRefunded(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff}); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}
	done, err := f.svc.Complete(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff, Note: "refund sent"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != enums.ReturnStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	reloaded, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusReturned {
		t.Fatalf("expected returned order, got %s", reloaded.Status)
	}

	// total 2600 accrued 2 points at delivery; completion claws them back.
	if len(f.loyalty.deductions) != 1 {
		t.Fatalf("expected one deduction, got %d", len(f.loyalty.deductions))
	}
	if d := f.loyalty.deductions[0]; d.points != 2 || d.userID != order.UserID || d.ref != req.Code {
		t.Fatalf("unexpected deduction %+v", d)
	}

	_, err = f.svc.Complete(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on repeat completion, got %v", err)
	}
	if len(f.loyalty.deductions) != 1 {
		t.Fatal("repeat completion must not deduct again")
	}
}

func TestProgressionRejectsSkippedSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)

	staff := uuid.New()
	// Straight from pending to received skips approval and shipping.
	_, err := f.svc.MarkReceived(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	_, err = f.svc.Complete(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestLazyExpiryOnRead(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)
	f.backdate(t, req.ID)

	got, err := f.svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected force-rejected request, got %s", got.Status)
	}
	if got.ResolutionNote == nil || *got.ResolutionNote != expiredNote {
		t.Fatalf("expected system note, got %v", got.ResolutionNote)
	}

	// The write path sees the same fate.
	_, err = f.svc.Approve(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict after expiry, got %v", err)
	}
}

func TestLazyExpiryOnWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)
	f.backdate(t, req.ID)

	// Approval of an expired request force-rejects it first, then fails.
	_, err := f.svc.Approve(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: uuid.New(), Note: "late"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	var stored models.ReturnRequest
	if err := f.db.Where("id = ?", req.ID).First(&stored).Error; err != nil {
		t.Fatalf("load request: %v", err)
	}
	if stored.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected in store, got %s", stored.Status)
	}
}

func TestExpireStaleSweep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	stale := f.createRequest(t, f.deliveredOrder(t))
	fresh := f.createRequest(t, f.deliveredOrder(t))
	f.backdate(t, stale.ID)

	closed, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected one closed request, got %d", closed)
	}

	gotStale, _ := f.svc.Get(ctx, stale.ID)
	if gotStale.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected swept request rejected, got %s", gotStale.Status)
	}
	gotFresh, _ := f.svc.Get(ctx, fresh.ID)
	if gotFresh.Status != enums.ReturnStatusPending {
		t.Fatalf("expected fresh request untouched, got %s", gotFresh.Status)
	}
}

func TestCustomerWithdrawal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	req := f.createRequest(t, order)

	_, err := f.svc.RequestCancel(ctx, req.ID, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for another customer, got %v", err)
	}

	withdrawn, err := f.svc.RequestCancel(ctx, req.ID, order.UserID)
	if err != nil {
		t.Fatalf("request cancel: %v", err)
	}
	if withdrawn.Status != enums.ReturnStatusCancelPending {
		t.Fatalf("expected cancel_pending, got %s", withdrawn.Status)
	}

	staff := uuid.New()
	closed, err := f.svc.ConfirmCancel(ctx, ResolveInput{RequestID: req.ID, ResolvedBy: staff, Note: "ack"})
	if err != nil {
		t.Fatalf("confirm cancel: %v", err)
	}
	if closed.Status != enums.ReturnStatusCanceled {
		t.Fatalf("expected canceled, got %s", closed.Status)
	}

	// A closed request frees the order for a fresh one.
	if _, err := f.svc.Create(ctx, CreateInput{
		OrderID: order.ID, RequestedBy: order.UserID,
		Reason: "still broken", Images: []string{"a"},
		RefundMethod: enums.RefundMethodCash,
	}); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}
