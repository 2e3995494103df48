package controllers

import (
	"net/http"

	"github.com/haiminhle/storefront-backend/api/middleware"
	"github.com/haiminhle/storefront-backend/api/responses"
	"github.com/haiminhle/storefront-backend/internal/loyalty"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

// LoyaltyBalance returns the caller's current point balance.
func LoyaltyBalance(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
			return
		}
		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"balance": balance})
	}
}
