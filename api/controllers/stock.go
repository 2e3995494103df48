package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haiminhle/storefront-backend/api/middleware"
	"github.com/haiminhle/storefront-backend/api/responses"
	"github.com/haiminhle/storefront-backend/api/validators"
	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
)

type skuRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	VariantID string `json:"variantId" validate:"required,uuid"`
	SizeID    string `json:"sizeId" validate:"required,uuid"`
}

func (s skuRequest) ref() (inventory.SKURef, error) {
	productID, err := parseUUIDField(s.ProductID, "productId")
	if err != nil {
		return inventory.SKURef{}, err
	}
	variantID, err := parseUUIDField(s.VariantID, "variantId")
	if err != nil {
		return inventory.SKURef{}, err
	}
	sizeID, err := parseUUIDField(s.SizeID, "sizeId")
	if err != nil {
		return inventory.SKURef{}, err
	}
	return inventory.SKURef{ProductID: productID, VariantID: variantID, SizeID: sizeID}, nil
}

// parseUUIDField guards body fields already covered by the uuid validator
// tag, so a tag drift degrades to a 400 instead of a panic.
func parseUUIDField(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed uuid").
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}

type stockInRequest struct {
	SKU                 skuRequest `json:"sku" validate:"required"`
	Quantity            int        `json:"quantity" validate:"required,gt=0"`
	UnitCost            string     `json:"unitCost" validate:"required"`
	TargetProfitPercent *string    `json:"targetProfitPercent,omitempty"`
	PercentDiscount     *string    `json:"percentDiscount,omitempty"`
	LowStockThreshold   *int       `json:"lowStockThreshold,omitempty"`
	ReferenceType       string     `json:"referenceType,omitempty"`
	ReferenceID         string     `json:"referenceId,omitempty"`
}

type stockOutRequest struct {
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
	Reason        string `json:"reason" validate:"required"`
	ReferenceType string `json:"referenceType,omitempty"`
	ReferenceID   string `json:"referenceId,omitempty"`
}

type stockAdjustRequest struct {
	NewQuantity int    `json:"newQuantity" validate:"min=0"`
	Note        string `json:"note,omitempty" validate:"max=500"`
}

type reserveRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type pricePreviewRequest struct {
	UnitCost            string  `json:"unitCost" validate:"required"`
	TargetProfitPercent string  `json:"targetProfitPercent" validate:"required"`
	PercentDiscount     *string `json:"percentDiscount,omitempty"`
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decimal value").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

func parseOptionalDecimal(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value, err := parseDecimal(*raw, field)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func parseStockItemID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "stockItemId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "stock item id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock item id")
	}
	return id, nil
}

func actorRef(r *http.Request) *uuid.UUID {
	if id, ok := middleware.ActorIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

// StockIn receives goods into the warehouse ledger.
func StockIn(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stockInRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unitCost, err := parseDecimal(req.UnitCost, "unitCost")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profit, err := parseOptionalDecimal(req.TargetProfitPercent, "targetProfitPercent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := parseOptionalDecimal(req.PercentDiscount, "percentDiscount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sku, err := req.SKU.ref()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.StockIn(r.Context(), nil, inventory.StockInInput{
			SKU:                 sku,
			Quantity:            req.Quantity,
			UnitCost:            unitCost,
			TargetProfitPercent: profit,
			PercentDiscount:     discount,
			LowStockThreshold:   req.LowStockThreshold,
			Reason:              enums.InventoryReasonRestock,
			ReferenceType:       req.ReferenceType,
			ReferenceID:         req.ReferenceID,
			ActorID:             actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// StockOut removes goods outside the order flow (damage, write-off).
func StockOut(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req stockOutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseInventoryReason(req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason"))
			return
		}

		item, err := svc.StockOut(r.Context(), nil, inventory.StockOutInput{
			StockItemID:   id,
			Quantity:      req.Quantity,
			Reason:        reason,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			ActorID:       actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// AdjustStock reconciles ledger quantity with a physical count.
func AdjustStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req stockAdjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			StockItemID: id,
			NewQuantity: req.NewQuantity,
			Note:        req.Note,
			ActorID:     actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// ReserveStock holds quantity for a pending checkout.
func ReserveStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Reserve(r.Context(), nil, id, req.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reserved"})
	}
}

// ReleaseStock frees a previously held quantity.
func ReleaseStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Release(r.Context(), nil, id, req.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// GetStockItem returns one ledger row by id.
func GetStockItem(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// StockAvailability looks a SKU up by its product/variant/size triple so the
// cart layer can show sellable quantity.
func StockAvailability(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sku inventory.SKURef
		for _, part := range []struct {
			key  string
			dest *uuid.UUID
		}{
			{"productId", &sku.ProductID},
			{"variantId", &sku.VariantID},
			{"sizeId", &sku.SizeID},
		} {
			raw := strings.TrimSpace(r.URL.Query().Get(part.key))
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a uuid").WithDetails(map[string]any{"field": part.key}))
				return
			}
			*part.dest = id
		}

		item, err := svc.GetBySKU(r.Context(), sku)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"stockItemId": item.ID,
			"quantity":    item.Quantity,
			"reservedQty": item.ReservedQty,
			"available":   item.Quantity - item.ReservedQty,
		})
	}
}

// PreviewPrices derives selling prices from a cost and margin without
// touching the ledger.
func PreviewPrices(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pricePreviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cost, err := parseDecimal(req.UnitCost, "unitCost")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profit, err := parseDecimal(req.TargetProfitPercent, "targetProfitPercent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount := decimal.Zero
		if req.PercentDiscount != nil {
			discount, err = parseDecimal(*req.PercentDiscount, "percentDiscount")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, inventory.ComputePrices(cost, profit, discount))
	}
}

// StockHistory returns the most recent ledger entries for an item.
func StockHistory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseStockItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.History(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
