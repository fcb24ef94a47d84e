package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anupamdas/zevar-backend/api/controllers"
	webhookcontrollers "github.com/anupamdas/zevar-backend/api/controllers/webhooks"
	"github.com/anupamdas/zevar-backend/api/middleware"
	cartsvc "github.com/anupamdas/zevar-backend/internal/cart"
	checkoutsvc "github.com/anupamdas/zevar-backend/internal/checkout"
	ordersvc "github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/internal/payments"
	"github.com/anupamdas/zevar-backend/internal/products"
	"github.com/anupamdas/zevar-backend/pkg/config"
	"github.com/anupamdas/zevar-backend/pkg/db"
	"github.com/anupamdas/zevar-backend/pkg/logger"
	"github.com/anupamdas/zevar-backend/pkg/outbox/idempotency"
	"github.com/anupamdas/zevar-backend/pkg/razorpay"
	pkgredis "github.com/anupamdas/zevar-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. The webhook guard and
// idempotency store are optional; routes degrade to unguarded behavior when
// they are nil.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *pkgredis.Client
	CheckoutService checkoutsvc.Service
	PaymentsService payments.Service
	CartService     cartsvc.Service
	OrdersService   ordersvc.Service
	ProductsRepo    products.Repository
	RazorpayClient  *razorpay.Client
	WebhookGuard    *idempotency.Manager
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var idempotencyStore pkgredis.IdempotencyStore
	var redisPinger pkgredis.Pinger
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Idempotency(idempotencyStore, logg)).
				Post("/create", controllers.CreateOrder(deps.CheckoutService, logg))
			r.With(middleware.Idempotency(idempotencyStore, logg)).
				Post("/process-payment", controllers.ProcessPayment(deps.PaymentsService, logg))
			r.Post("/webhook", webhookcontrollers.Razorpay(deps.PaymentsService, webhookVerifier(deps.RazorpayClient), webhookGuard(deps.WebhookGuard), logg))
			r.Get("/payment-methods", controllers.PaymentMethods(deps.PaymentsService))
			r.Get("/order/{orderId}", controllers.OrderDetail(deps.OrdersService, logg))
			r.Put("/{orderId}/status", controllers.UpdateOrderStatus(deps.OrdersService, logg))
			r.Get("/{userId}", controllers.ListUserOrders(deps.OrdersService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", controllers.CartAdd(deps.CartService, logg))
			r.Put("/update", controllers.CartUpdate(deps.CartService, logg))
			r.Delete("/item/{itemId}", controllers.CartRemoveItem(deps.CartService, logg))
			r.Delete("/clear/{userId}", controllers.CartClear(deps.CartService, logg))
			r.Get("/{userId}", controllers.CartFetch(deps.CartService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.ProductsRepo, logg))
			r.Get("/{productId}", controllers.ProductDetail(deps.ProductsRepo, logg))
		})
	})

	return r
}

// webhookGuard and webhookVerifier avoid handing the controller a typed nil.
func webhookGuard(guard *idempotency.Manager) webhookcontrollers.Guard {
	if guard == nil {
		return nil
	}
	return guard
}

func webhookVerifier(client *razorpay.Client) webhookcontrollers.Verifier {
	if client == nil {
		return nil
	}
	return client
}
