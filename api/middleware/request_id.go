package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/haiminhle/storefront-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	// maxRequestIDLen bounds what an upstream proxy can push into log fields.
	maxRequestIDLen = 128
)

// RequestID propagates the upstream request id, minting one when the edge
// did not supply a usable value, and echoes it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" || len(reqID) > maxRequestIDLen {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
