package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haiminhle/storefront-backend/api/controllers"
	"github.com/haiminhle/storefront-backend/api/middleware"
	"github.com/haiminhle/storefront-backend/internal/cancellations"
	"github.com/haiminhle/storefront-backend/internal/inventory"
	"github.com/haiminhle/storefront-backend/internal/loyalty"
	"github.com/haiminhle/storefront-backend/internal/notifications"
	"github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/internal/payments/vnpay"
	"github.com/haiminhle/storefront-backend/internal/returns"
	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the HTTP surface needs wired in.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         pinger
	Inventory     inventory.Service
	Orders        orders.Service
	Cancellations cancellations.Service
	Returns       returns.Service
	Payments      vnpay.Service
	Notifications notifications.Service
	Loyalty       loyalty.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.ActorContext(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	// Gateway callbacks carry their own HMAC authentication.
	r.Route("/payments/vnpay", func(r chi.Router) {
		r.Get("/return", controllers.VNPayReturn(deps.Payments, logg))
		r.Get("/ipn", controllers.VNPayIPN(deps.Payments, logg))
		r.Post("/ipn", controllers.VNPayIPN(deps.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(deps.Orders, deps.Payments, logg))
				r.Get("/", controllers.ListMyOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.Get("/code/{orderCode}", controllers.GetOrderByCode(deps.Orders, logg))
				r.Get("/{orderId}/payment-link", controllers.PaymentLink(deps.Orders, deps.Payments, logg))
				r.Get("/{orderId}/cancellations", controllers.ListOrderCancellations(deps.Cancellations, logg))
				r.Get("/{orderId}/returns", controllers.ListOrderReturns(deps.Returns, logg))
			})

			r.Route("/cancellations", func(r chi.Router) {
				r.Post("/", controllers.CreateCancellation(deps.Cancellations, logg))
				r.Get("/{cancellationId}", controllers.GetCancellation(deps.Cancellations, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Post("/", controllers.CreateReturn(deps.Returns, logg))
				r.Get("/{returnId}", controllers.GetReturn(deps.Returns, logg))
				r.Get("/code/{returnCode}", controllers.GetReturnByCode(deps.Returns, logg))
				r.Post("/{returnId}/withdraw", controllers.WithdrawReturn(deps.Returns, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})

			r.Get("/loyalty/balance", controllers.LoyaltyBalance(deps.Loyalty, logg))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireActor(logg), middleware.RequireStaff(logg))

			r.Route("/stock", func(r chi.Router) {
				r.Post("/in", controllers.StockIn(deps.Inventory, logg))
				r.Post("/price-preview", controllers.PreviewPrices(logg))
				r.Get("/availability", controllers.StockAvailability(deps.Inventory, logg))
				r.Get("/{stockItemId}", controllers.GetStockItem(deps.Inventory, logg))
				r.Get("/{stockItemId}/history", controllers.StockHistory(deps.Inventory, logg))
				r.Post("/{stockItemId}/out", controllers.StockOut(deps.Inventory, logg))
				r.Post("/{stockItemId}/adjust", controllers.AdjustStock(deps.Inventory, logg))
				r.Post("/{stockItemId}/reserve", controllers.ReserveStock(deps.Inventory, logg))
				r.Post("/{stockItemId}/release", controllers.ReleaseStock(deps.Inventory, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderId}/transition", controllers.TransitionOrder(deps.Orders, logg))
				r.Post("/{orderId}/confirm-return", controllers.ConfirmOrderReturn(deps.Orders, logg))
			})

			r.Route("/cancellations", func(r chi.Router) {
				r.Post("/{cancellationId}/approve", controllers.ApproveCancellation(deps.Cancellations, logg))
				r.Post("/{cancellationId}/reject", controllers.RejectCancellation(deps.Cancellations, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Post("/{returnId}/approve", controllers.ApproveReturn(deps.Returns, logg))
				r.Post("/{returnId}/reject", controllers.RejectReturn(deps.Returns, logg))
				r.Post("/{returnId}/assign-shipper", controllers.AssignReturnShipper(deps.Returns, logg))
				r.Post("/{returnId}/received", controllers.MarkReturnReceived(deps.Returns, logg))
				r.Post("/{returnId}/refunded", controllers.MarkReturnRefunded(deps.Returns, logg))
				r.Post("/{returnId}/complete", controllers.CompleteReturn(deps.Returns, logg))
				r.Post("/{returnId}/confirm-cancel", controllers.ConfirmReturnCancel(deps.Returns, logg))
			})
		})
	})

	return r
}
