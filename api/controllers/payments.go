package controllers

import (
	"net/http"

	"github.com/haiminhle/storefront-backend/api/responses"
	"github.com/haiminhle/storefront-backend/internal/payments/vnpay"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

// VNPayReturn handles the browser redirect back from the gateway. Errors
// surface to the customer; a replay of an already-settled payment renders
// the current state instead of failing.
func VNPayReturn(svc vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.HandleReturn(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"orderCode": result.OrderCode,
			"paid":      result.Paid,
			"duplicate": result.Duplicate,
			"message":   result.Message,
		})
	}
}

// VNPayIPN handles the server-to-server notification. The gateway retries
// anything that is not HTTP 200, so every outcome acknowledges with a
// gateway response code instead of an HTTP error.
func VNPayIPN(svc vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err == nil && len(r.PostForm) > 0 {
				query = r.PostForm
			}
		}
		resp := svc.HandleIPN(r.Context(), query)
		responses.WriteRaw(w, http.StatusOK, resp)
	}
}
