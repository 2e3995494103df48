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
	"github.com/haiminhle/storefront-backend/internal/cancellations"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

type createCancellationRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

type resolveCancellationRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

func parseCancellationID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "cancellationId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cancellation id")
	}
	return id, nil
}

// CreateCancellation opens a cancellation request; requests against
// still-pending orders may resolve synchronously.
func CreateCancellation(svc cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req createCancellationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseUUIDField(req.OrderID, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Create(r.Context(), cancellations.CreateInput{
			OrderID:     orderID,
			RequestedBy: userID,
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ApproveCancellation is the staff decision that cancels the order.
func ApproveCancellation(svc cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveCancellation(logg, svc.Approve)
}

// RejectCancellation declines the request and reopens the order flow.
func RejectCancellation(svc cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveCancellation(logg, svc.Reject)
}

func resolveCancellation(logg *logger.Logger, resolve func(ctx context.Context, input cancellations.ResolveInput) (*models.CancelRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseCancellationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req resolveCancellationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := resolve(r.Context(), cancellations.ResolveInput{
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

// GetCancellation returns one request by id.
func GetCancellation(svc cancellations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseCancellationID(r)
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

// ListOrderCancellations returns every request raised against an order.
func ListOrderCancellations(svc cancellations.Service, logg *logger.Logger) http.HandlerFunc {
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
