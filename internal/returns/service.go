package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
)

const (
	expiredNote = "auto-rejected: return window expired"

	// loyaltyPointsDivisor mirrors the accrual rate on the order side so a
	// completed return claws back exactly what the order awarded.
	loyaltyPointsDivisor = 1000

	// expirySweepBatch bounds how many stale requests one sweep pass closes.
	expirySweepBatch = 100
)

// CreateInput is a customer's return request against a delivered order.
type CreateInput struct {
	OrderID      uuid.UUID
	RequestedBy  uuid.UUID
	Reason       string
	Images       []string
	RefundMethod enums.RefundMethod
	BankName     string
	BankAccount  string
}

// ResolveInput is a staff decision or progression step on a request.
type ResolveInput struct {
	RequestID  uuid.UUID
	ResolvedBy uuid.UUID
	Note       string
}

// AssignShipperInput attaches a pickup shipper to an approved request.
type AssignShipperInput struct {
	RequestID  uuid.UUID
	ShipperID  uuid.UUID
	AssignedBy uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type codeGenerator interface {
	NextReturnCode(ctx context.Context) (string, error)
}

// orderAggregate is the slice of the order service the workflow needs.
type orderAggregate interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkReturned(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID) error
}

// pointsLedger claws back points a returned order had earned. The ledger
// floors the balance at zero, so over-deduction is its problem, not ours.
type pointsLedger interface {
	DeductPoints(ctx context.Context, userID uuid.UUID, points int, reference string) error
}

// Service runs the post-delivery return workflow. Requests expire: a pending
// request past its window is force-rejected the next time anything touches
// it, and a sweep job closes the ones nobody touches.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error)
	Approve(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)
	Reject(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)
	AssignShipper(ctx context.Context, input AssignShipperInput) (*models.ReturnRequest, error)
	MarkReceived(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)
	MarkRefunded(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)
	Complete(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)
	// RequestCancel lets the customer withdraw a request that has not yet
	// shipped; staff acknowledge with ConfirmCancel.
	RequestCancel(ctx context.Context, requestID, requestedBy uuid.UUID) (*models.ReturnRequest, error)
	ConfirmCancel(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error)

	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	GetByCode(ctx context.Context, code string) (*models.ReturnRequest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error)
	// ExpireStale force-rejects pending requests past their window; the cron
	// sweep calls this. Returns how many it closed.
	ExpireStale(ctx context.Context) (int, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Orders   orderAggregate
	Sequence codeGenerator
	Outbox   eventEmitter
	Loyalty  pointsLedger
	Logger   *logger.Logger
	Config   config.ReturnsConfig
}

type serviceImpl struct {
	repo     Repository
	tx       txRunner
	orders   orderAggregate
	sequence codeGenerator
	outbox   eventEmitter
	loyalty  pointsLedger
	logg     *logger.Logger
	cfg      config.ReturnsConfig
}

// NewService wires the return workflow service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("returns: Repo is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("returns: Tx is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("returns: Orders is required")
	}
	if params.Sequence == nil {
		return nil, fmt.Errorf("returns: Sequence is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("returns: Outbox is required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("returns: Loyalty is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("returns: Logger is required")
	}
	return &serviceImpl{
		repo:     params.Repo,
		tx:       params.Tx,
		orders:   params.Orders,
		sequence: params.Sequence,
		outbox:   params.Outbox,
		loyalty:  params.Loyalty,
		logg:     params.Logger,
		cfg:      params.Config,
	}, nil
}

func (s *serviceImpl) Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a return reason is required")
	}
	if n := len(input.Images); n < s.cfg.MinImages || n > s.cfg.MaxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence image count out of range").
			WithDetails(map[string]any{"min": s.cfg.MinImages, "max": s.cfg.MaxImages, "got": n})
	}
	if !input.RefundMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown refund method")
	}
	if input.RefundMethod == enums.RefundMethodBankTransfer && (input.BankName == "" || input.BankAccount == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank name and account are required for bank transfer refunds")
	}

	// Order reads run on the main connection and stay outside the
	// transaction.
	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if order.UserID != input.RequestedBy {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}

	var req *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindActiveByOrder(ctx, input.OrderID); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "an active return request already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking active requests")
		}

		code, err := s.sequence.NextReturnCode(ctx)
		if err != nil {
			return err
		}

		// The customer eats the return shipping fee out of the refund.
		refund := order.Total.Sub(decimal.NewFromInt(s.cfg.ShippingFee))
		if refund.IsNegative() {
			refund = decimal.Zero
		}

		req = &models.ReturnRequest{
			Code:         code,
			OrderID:      input.OrderID,
			RequestedBy:  input.RequestedBy,
			Reason:       input.Reason,
			Images:       input.Images,
			RefundMethod: input.RefundMethod,
			RefundAmount: refund,
			Status:       enums.ReturnStatusPending,
			ExpiresAt:    time.Now().Add(s.cfg.ExpiryWindow),
		}
		if input.RefundMethod == enums.RefundMethodBankTransfer {
			req.BankName = &input.BankName
			req.BankAccount = &input.BankAccount
		}
		if err := repo.Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating return request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   req.ID,
			RecipientID:   order.UserID,
			Data: map[string]any{
				"return_code":   req.Code,
				"order_code":    order.Code,
				"refund_amount": req.RefundAmount.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) Approve(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	return s.advance(ctx, input.RequestID, enums.ReturnStatusPending, enums.ReturnStatusApproved, map[string]any{
		"resolution_note": input.Note,
		"resolved_by":     input.ResolvedBy,
	})
}

func (s *serviceImpl) Reject(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	now := time.Now()
	return s.advance(ctx, input.RequestID, enums.ReturnStatusPending, enums.ReturnStatusRejected, map[string]any{
		"resolution_note": input.Note,
		"resolved_by":     input.ResolvedBy,
		"resolved_at":     now,
	})
}

func (s *serviceImpl) AssignShipper(ctx context.Context, input AssignShipperInput) (*models.ReturnRequest, error) {
	if input.ShipperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a shipper is required")
	}
	return s.advance(ctx, input.RequestID, enums.ReturnStatusApproved, enums.ReturnStatusShipping, map[string]any{
		"shipper_id": input.ShipperID,
	})
}

func (s *serviceImpl) MarkReceived(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	return s.advance(ctx, input.RequestID, enums.ReturnStatusShipping, enums.ReturnStatusReceived, nil)
}

func (s *serviceImpl) MarkRefunded(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	return s.advance(ctx, input.RequestID, enums.ReturnStatusReceived, enums.ReturnStatusRefunded, nil)
}

// Complete closes a refunded return: the order flips to returned and the
// points the order once awarded are clawed back.
func (s *serviceImpl) Complete(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	if err := s.expireIfStale(ctx, input.RequestID); err != nil {
		return nil, err
	}

	var req *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.load(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}
		req = loaded

		now := time.Now()
		won, err := repo.CASStatus(ctx, req.ID, enums.ReturnStatusRefunded, enums.ReturnStatusCompleted, map[string]any{
			"resolution_note": input.Note,
			"resolved_by":     input.ResolvedBy,
			"resolved_at":     now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "completing return request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request is not refunded").
				WithDetails(map[string]any{"status": req.Status.String()})
		}
		req.Status = enums.ReturnStatusCompleted
		req.ResolvedAt = &now

		if err := s.orders.MarkReturned(ctx, tx, req.OrderID, &input.ResolvedBy); err != nil {
			return err
		}

		return s.emitStatusChanged(ctx, tx, req, req.RequestedBy)
	})
	if err != nil {
		return nil, err
	}

	// Clawback happens after commit; a failed deduction leaves the balance
	// generous, never the workflow stuck. The order read stays out here too,
	// transaction reads go through the tx-bound repo only.
	order, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("loading order for clawback on return %s: %v", req.Code, err))
		return req, nil
	}
	if order.LoyaltyAwarded {
		points := int(order.Total.Div(decimal.NewFromInt(loyaltyPointsDivisor)).IntPart())
		if points > 0 {
			if derr := s.loyalty.DeductPoints(ctx, order.UserID, points, req.Code); derr != nil {
				s.logg.Warn(ctx, fmt.Sprintf("loyalty clawback failed for return %s (order %s): %v", req.Code, order.Code, derr))
			}
		}
	}
	return req, nil
}

func (s *serviceImpl) RequestCancel(ctx context.Context, requestID, requestedBy uuid.UUID) (*models.ReturnRequest, error) {
	if err := s.expireIfStale(ctx, requestID); err != nil {
		return nil, err
	}

	var req *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.load(ctx, tx, requestID)
		if err != nil {
			return err
		}
		req = loaded
		if req.RequestedBy != requestedBy {
			return pkgerrors.New(pkgerrors.CodeForbidden, "return request belongs to another customer")
		}

		from := req.Status
		switch from {
		case enums.ReturnStatusPending, enums.ReturnStatusApproved:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request can no longer be withdrawn").
				WithDetails(map[string]any{"status": from.String()})
		}

		won, err := repo.CASStatus(ctx, req.ID, from, enums.ReturnStatusCancelPending, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdrawing return request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request changed concurrently")
		}
		req.Status = enums.ReturnStatusCancelPending

		return s.emitStatusChanged(ctx, tx, req, req.RequestedBy)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) ConfirmCancel(ctx context.Context, input ResolveInput) (*models.ReturnRequest, error) {
	now := time.Now()
	return s.advance(ctx, input.RequestID, enums.ReturnStatusCancelPending, enums.ReturnStatusCanceled, map[string]any{
		"resolution_note": input.Note,
		"resolved_by":     input.ResolvedBy,
		"resolved_at":     now,
	})
}

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if err := s.expireIfStale(ctx, id); err != nil {
		return nil, err
	}
	return s.load(ctx, nil, id)
}

func (s *serviceImpl) GetByCode(ctx context.Context, code string) (*models.ReturnRequest, error) {
	req, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading return request")
	}
	return s.Get(ctx, req.ID)
}

func (s *serviceImpl) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error) {
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing return requests")
	}
	return rows, nil
}

func (s *serviceImpl) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.repo.ListExpiredPending(ctx, time.Now(), expirySweepBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing expired requests")
	}

	closed := 0
	for i := range stale {
		req := stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.forceReject(ctx, tx, &req)
		})
		if err != nil {
			// One stuck row should not stall the sweep.
			s.logg.Warn(ctx, fmt.Sprintf("expiring return %s: %v", req.Code, err))
			continue
		}
		closed++
	}
	return closed, nil
}

// advance moves a request from one exact status to the next inside a
// transaction and emits the status-changed event.
func (s *serviceImpl) advance(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (*models.ReturnRequest, error) {
	if err := s.expireIfStale(ctx, id); err != nil {
		return nil, err
	}

	var req *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		req = loaded

		won, err := repo.CASStatus(ctx, req.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating return request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("return request is not %s", from)).
				WithDetails(map[string]any{"status": req.Status.String()})
		}
		req.Status = to
		if sid, ok := updates["shipper_id"].(uuid.UUID); ok {
			req.ShipperID = &sid
		}

		return s.emitStatusChanged(ctx, tx, req, req.RequestedBy)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// expireIfStale applies lazy expiry in a transaction of its own, committed
// before the caller opens one. A force-reject must survive even when the
// caller's operation is then refused against the now-rejected row.
func (s *serviceImpl) expireIfStale(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading return request")
		}
		if req.Status == enums.ReturnStatusPending && time.Now().After(req.ExpiresAt) {
			return s.forceReject(ctx, tx, req)
		}
		return nil
	})
}

func (s *serviceImpl) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ReturnRequest, error) {
	req, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading return request")
	}
	return req, nil
}

// forceReject closes an expired pending request with a system note. Both the
// lazy path and the sweep funnel through here.
func (s *serviceImpl) forceReject(ctx context.Context, tx *gorm.DB, req *models.ReturnRequest) error {
	repo := s.repo.WithTx(tx)
	now := time.Now()
	won, err := repo.CASStatus(ctx, req.ID, enums.ReturnStatusPending, enums.ReturnStatusRejected, map[string]any{
		"resolution_note": expiredNote,
		"resolved_at":     now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expiring return request")
	}
	if !won {
		// Someone resolved it first; reload and move on.
		fresh, ferr := repo.FindByID(ctx, req.ID)
		if ferr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "reloading return request")
		}
		*req = *fresh
		return nil
	}
	req.Status = enums.ReturnStatusRejected
	note := expiredNote
	req.ResolutionNote = &note
	req.ResolvedAt = &now
	return s.emitStatusChanged(ctx, tx, req, req.RequestedBy)
}

func (s *serviceImpl) emitStatusChanged(ctx context.Context, tx *gorm.DB, req *models.ReturnRequest, recipient uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReturnStatusChanged,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   req.ID,
		RecipientID:   recipient,
		Data: map[string]any{
			"return_code": req.Code,
			"status":      req.Status.String(),
		},
	})
}
