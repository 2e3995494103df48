package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haiminhle/storefront-backend/api/middleware"
	"github.com/haiminhle/storefront-backend/api/responses"
	"github.com/haiminhle/storefront-backend/api/validators"
	internalorders "github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/internal/payments/vnpay"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
)

type orderItemRequest struct {
	SKU  skuRequest `json:"sku" validate:"required"`
	Name string     `json:"name" validate:"required,max=255"`
	Qty  int        `json:"qty" validate:"required,gt=0"`
}

type createOrderRequest struct {
	PaymentMethod   string             `json:"paymentMethod" validate:"required,oneof=cod vnpay"`
	ShippingAddress string             `json:"shippingAddress" validate:"required,max=1000"`
	ShippingFee     string             `json:"shippingFee,omitempty"`
	CouponCode      string             `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderResponse struct {
	Order *models.Order `json:"order"`
	// PaymentURL is set for prepaid checkouts; empty when building it
	// failed, in which case the order is still created awaiting payment.
	PaymentURL string `json:"paymentUrl,omitempty"`
}

type transitionRequest struct {
	Status    string  `json:"status" validate:"required"`
	Note      string  `json:"note,omitempty" validate:"max=500"`
	ShipperID *string `json:"shipperId,omitempty" validate:"omitempty,uuid"`
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CreateOrder checks out the cart. Prepaid orders come back with a gateway
// redirect URL; a gateway outage degrades to an order awaiting payment.
func CreateOrder(svc internalorders.Service, payments vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		shippingFee := decimal.Zero
		if strings.TrimSpace(req.ShippingFee) != "" {
			shippingFee, err = parseDecimal(req.ShippingFee, "shippingFee")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := internalorders.CreateOrderInput{
			UserID:          userID,
			PaymentMethod:   method,
			ShippingAddress: req.ShippingAddress,
			ShippingFee:     shippingFee,
		}
		if code := strings.TrimSpace(req.CouponCode); code != "" {
			input.CouponCode = &code
		}
		for _, item := range req.Items {
			sku, err := item.SKU.ref()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = append(input.Items, internalorders.CreateOrderItemInput{
				SKU:  sku,
				Name: item.Name,
				Qty:  item.Qty,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := createOrderResponse{Order: order}
		if method == enums.PaymentMethodVNPay && payments != nil {
			payURL, perr := payments.PaymentURL(r.Context(), order, clientIP(r))
			if perr != nil {
				if logg != nil {
					logg.Warn(r.Context(), "payment url unavailable for order "+order.Code+": "+perr.Error())
				}
			} else {
				resp.PaymentURL = payURL
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// GetOrder returns a single order. Customers only see their own.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderRead(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// GetOrderByCode resolves an order by its public code.
func GetOrderByCode(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "orderCode"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order code is required"))
			return
		}
		order, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderRead(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListMyOrders pages through the calling customer's orders.
func ListMyOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
		list, next, err := svc.ListByUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list, next)
	}
}

// TransitionOrder applies a staff-driven status change (confirm, assign,
// out-for-delivery, delivered, delivery-failed, returning).
func TransitionOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		to, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		input := internalorders.TransitionInput{
			OrderID: id,
			To:      to,
			ActorID: actorRef(r),
			Note:    req.Note,
		}
		if req.ShipperID != nil {
			shipperID, err := parseUUIDField(*req.ShipperID, "shipperId")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.ShipperID = &shipperID
		}

		order, err := svc.Transition(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ConfirmOrderReturn is the staff acknowledgement that returned goods are
// physically back in the warehouse; it triggers inventory restoration.
func ConfirmOrderReturn(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.ConfirmReturn(r.Context(), id, actorRef(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PaymentLink re-issues the gateway redirect URL for an unpaid prepaid order.
func PaymentLink(svc internalorders.Service, payments vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeOrderRead(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payURL, err := payments.PaymentURL(r.Context(), order, clientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"paymentUrl": payURL})
	}
}

// authorizeOrderRead lets staff read anything and customers only their own
// orders.
func authorizeOrderRead(r *http.Request, order *models.Order) error {
	if middleware.RoleFromContext(r.Context()) == middleware.RoleStaff {
		return nil
	}
	if userID, ok := middleware.ActorIDFromContext(r.Context()); ok && userID == order.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
}
