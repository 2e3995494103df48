package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haiminhle/storefront-backend/api/middleware"
	"github.com/haiminhle/storefront-backend/api/responses"
	"github.com/haiminhle/storefront-backend/api/validators"
	"github.com/haiminhle/storefront-backend/internal/returns"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

type createReturnRequest struct {
	OrderID      string   `json:"orderId" validate:"required,uuid"`
	Reason       string   `json:"reason" validate:"required,max=1000"`
	Images       []string `json:"images" validate:"required,min=1,dive,required,max=2048"`
	RefundMethod string   `json:"refundMethod" validate:"required,oneof=cash bank_transfer"`
	BankName     string   `json:"bankName,omitempty" validate:"max=255"`
	BankAccount  string   `json:"bankAccount,omitempty" validate:"max=64"`
}

type resolveReturnRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

type assignReturnShipperRequest struct {
	ShipperID string `json:"shipperId" validate:"required,uuid"`
}

func parseReturnID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "returnId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id")
	}
	return id, nil
}

// CreateReturn opens a return request against a delivered order.
func CreateReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req createReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseRefundMethod(req.RefundMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund method"))
			return
		}

		orderID, err := parseUUIDField(req.OrderID, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Create(r.Context(), returns.CreateInput{
			OrderID:      orderID,
			RequestedBy:  userID,
			Reason:       req.Reason,
			Images:       req.Images,
			RefundMethod: method,
			BankName:     req.BankName,
			BankAccount:  req.BankAccount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ApproveReturn accepts a pending request.
func ApproveReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.Approve)
}

// RejectReturn declines a pending request.
func RejectReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.Reject)
}

// MarkReturnReceived records the goods arriving back at the warehouse.
func MarkReturnReceived(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.MarkReceived)
}

// MarkReturnRefunded records the refund payout.
func MarkReturnRefunded(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.MarkRefunded)
}

// CompleteReturn closes the request and marks the order returned.
func CompleteReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.Complete)
}

// ConfirmReturnCancel acknowledges a customer withdrawal.
func ConfirmReturnCancel(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveReturn(logg, svc.ConfirmCancel)
}

func resolveReturn(logg *logger.Logger, resolve func(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req resolveReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := resolve(r.Context(), returns.ResolveInput{
			RequestID:  id,
			ResolvedBy: actorID,
			Note:       req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// AssignReturnShipper attaches a pickup shipper to an approved request.
func AssignReturnShipper(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req assignReturnShipperRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipperID, err := parseUUIDField(req.ShipperID, "shipperId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.AssignShipper(r.Context(), returns.AssignShipperInput{
			RequestID:  id,
			ShipperID:  shipperID,
			AssignedBy: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// WithdrawReturn lets the customer pull back a request that has not shipped.
func WithdrawReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}
		request, err := svc.RequestCancel(r.Context(), id, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// GetReturn returns one request by id. Reads run the expiry check, so a
// stale pending request comes back already rejected.
func GetReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// GetReturnByCode resolves a request by its public code.
func GetReturnByCode(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "returnCode"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "return code is required"))
			return
		}
		request, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// ListOrderReturns returns every request raised against an order.
func ListOrderReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
