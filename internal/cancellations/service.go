package cancellations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/haiminhle/storefront-backend/pkg/db"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
)

const autoApproveNote = "auto-approved: order not yet confirmed"

// CreateInput is a customer's cancellation request.
type CreateInput struct {
	OrderID     uuid.UUID
	RequestedBy uuid.UUID
	Reason      string
}

// ResolveInput is a staff decision on a pending request.
type ResolveInput struct {
	RequestID  uuid.UUID
	ResolvedBy uuid.UUID
	Note       string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderAggregate is the slice of the order service the workflow needs.
type orderAggregate interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ApplyCancellation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error)
	SetCancelFlag(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, open bool) error
}

// Service runs the cancellation workflow: one open request per order,
// auto-approval for unconfirmed orders, staff adjudication otherwise.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.CancelRequest, error)
	Approve(ctx context.Context, input ResolveInput) (*models.CancelRequest, error)
	Reject(ctx context.Context, input ResolveInput) (*models.CancelRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.CancelRequest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CancelRequest, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo               Repository
	Tx                 txRunner
	Orders             orderAggregate
	Outbox             eventEmitter
	Logger             *logger.Logger
	AutoApprovePending bool
}

type serviceImpl struct {
	repo               Repository
	tx                 txRunner
	orders             orderAggregate
	outbox             eventEmitter
	logg               *logger.Logger
	autoApprovePending bool
}

// NewService wires the cancellation workflow service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cancellations: Repo is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("cancellations: Tx is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("cancellations: Orders is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("cancellations: Outbox is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("cancellations: Logger is required")
	}
	return &serviceImpl{
		repo:               params.Repo,
		tx:                 params.Tx,
		orders:             params.Orders,
		outbox:             params.Outbox,
		logg:               params.Logger,
		autoApprovePending: params.AutoApprovePending,
	}, nil
}

func (s *serviceImpl) Create(ctx context.Context, input CreateInput) (*models.CancelRequest, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required")
	}

	// The order read runs on the main connection, so it stays ahead of the
	// transaction. When auto-approval fires, ApplyCancellation's CAS
	// re-checks the status anyway.
	order, err := s.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	var req *models.CancelRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindOpenByOrder(ctx, input.OrderID); err == nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "an open cancel request already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking open requests")
		}

		req = &models.CancelRequest{
			OrderID:     input.OrderID,
			RequestedBy: input.RequestedBy,
			Reason:      input.Reason,
			Status:      enums.CancelStatusPending,
		}
		if err := repo.Create(ctx, req); err != nil {
			// The partial unique index is the backstop for a racing insert.
			if db.IsUniqueViolation(err, "ux_cancel_requests_open") {
				return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "an open cancel request already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating cancel request")
		}

		if err := s.orders.SetCancelFlag(ctx, tx, input.OrderID, true); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flagging order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCancelRequested,
			AggregateType: enums.AggregateCancelRequest,
			AggregateID:   req.ID,
			RecipientID:   order.UserID,
			Data: map[string]any{
				"order_code": order.Code,
				"reason":     input.Reason,
			},
		}); err != nil {
			return err
		}

		// Nothing has been committed to yet on a pending order, so the
		// request resolves itself without staff review.
		if order.Status == enums.OrderStatusPending && s.autoApprovePending {
			return s.approveInTx(ctx, tx, req, nil, autoApproveNote)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) Approve(ctx context.Context, input ResolveInput) (*models.CancelRequest, error) {
	var req *models.CancelRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.getPending(ctx, repo, input.RequestID)
		if err != nil {
			return err
		}
		req = loaded
		return s.approveInTx(ctx, tx, req, &input.ResolvedBy, input.Note)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) approveInTx(ctx context.Context, tx *gorm.DB, req *models.CancelRequest, resolvedBy *uuid.UUID, note string) error {
	repo := s.repo.WithTx(tx)

	won, err := repo.Resolve(ctx, req.ID, enums.CancelStatusApproved, note, resolvedBy)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving cancel request")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cancel request already resolved")
	}
	req.Status = enums.CancelStatusApproved

	order, err := s.orders.ApplyCancellation(ctx, tx, req.OrderID, req.Reason, resolvedBy)
	if err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCancelResolved,
		AggregateType: enums.AggregateCancelRequest,
		AggregateID:   req.ID,
		RecipientID:   order.UserID,
		Data: map[string]any{
			"order_code": order.Code,
			"resolution": enums.CancelStatusApproved.String(),
		},
	})
}

func (s *serviceImpl) Reject(ctx context.Context, input ResolveInput) (*models.CancelRequest, error) {
	pending, err := s.Get(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	// Code and owner never change, so the order read can run before the
	// transaction instead of deadlocking against its own flag write.
	order, err := s.orders.Get(ctx, pending.OrderID)
	if err != nil {
		return nil, err
	}

	var req *models.CancelRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.getPending(ctx, repo, input.RequestID)
		if err != nil {
			return err
		}
		req = loaded

		won, err := repo.Resolve(ctx, req.ID, enums.CancelStatusRejected, input.Note, &input.ResolvedBy)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving cancel request")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancel request already resolved")
		}
		req.Status = enums.CancelStatusRejected

		// The order's status was never touched while the request was open;
		// only the flag clears.
		if err := s.orders.SetCancelFlag(ctx, tx, req.OrderID, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing cancel flag")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCancelResolved,
			AggregateType: enums.AggregateCancelRequest,
			AggregateID:   req.ID,
			RecipientID:   order.UserID,
			Data: map[string]any{
				"order_code": order.Code,
				"resolution": enums.CancelStatusRejected.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*models.CancelRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cancel request not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cancel request")
	}
	return req, nil
}

func (s *serviceImpl) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CancelRequest, error) {
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing cancel requests")
	}
	return rows, nil
}

func (s *serviceImpl) getPending(ctx context.Context, repo Repository, id uuid.UUID) (*models.CancelRequest, error) {
	req, err := repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cancel request not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading cancel request")
	}
	if req.Status != enums.CancelStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancel request already resolved").
			WithDetails(map[string]any{"status": req.Status.String()})
	}
	return req, nil
}
