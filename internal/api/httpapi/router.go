package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/BearBump/ShopShip/internal/integrations/payment/razorpay"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/BearBump/ShopShip/internal/services/keepalive"
	"github.com/BearBump/ShopShip/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const (
	DefaultVersion   = "2.0.0"
	DefaultClientURL = "http://localhost:3000"
	defaultCacheTTL  = 10 * time.Minute
)

type OrderService interface {
	SaveOrder(ctx context.Context, in models.OrderInput) (orders.SaveResult, error)
	CreateAndLink(ctx context.Context, orderID string) (orders.LinkResult, error)
	Reconcile(ctx context.Context, orderID string) (orders.ReconcileResult, error)
	ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (razorpay.Order, error)
	Status(ctx context.Context, id string) (razorpay.PaymentStatus, error)
}

type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// Deps are the collaborators of the HTTP surface. Cache, Limiter and KeepAlive may be nil.
type Deps struct {
	Orders    OrderService
	Shipping  shipping.Client
	Payments  PaymentGateway
	Verifier  SignatureVerifier
	Cache     cache.BytesCache
	Limiter   cache.Limiter
	KeepAlive keepalive.KeepAlive
	Logger    *zap.Logger
}

type Options struct {
	Version            string
	ClientURL          string
	SwaggerPath        string
	CacheTTL           time.Duration
	RateLimitPerMinute int64
	RequestTimeout     time.Duration
}

type API struct {
	orders    OrderService
	ship      shipping.Client
	payments  PaymentGateway
	verifier  SignatureVerifier
	cache     cache.BytesCache
	limiter   cache.Limiter
	keepAlive keepalive.KeepAlive
	log       *zap.Logger
	validate  *validator.Validate
	opts      Options
	startedAt time.Time
	now       func() time.Time
}

func New(d Deps, opts Options) *API {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.ClientURL == "" {
		opts.ClientURL = DefaultClientURL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	ka := d.KeepAlive
	if ka == nil {
		ka = keepalive.Noop{}
	}
	return &API{
		orders:    d.Orders,
		ship:      d.Shipping,
		payments:  d.Payments,
		verifier:  d.Verifier,
		cache:     d.Cache,
		limiter:   d.Limiter,
		keepAlive: ka,
		log:       logging.OrNop(d.Logger).Named("http"),
		validate:  newValidator(),
		opts:      opts,
		startedAt: time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, a.requestLogger, middleware.Recoverer, middleware.StripSlashes)
	r.Use(a.cors())
	r.Use(middleware.Timeout(a.opts.RequestTimeout))

	r.Get("/", a.root)

	if a.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, a.opts.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger.json"),
		))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)

		r.Route("/wakeup", func(r chi.Router) {
			r.Get("/", a.wakeup)
			r.Get("/status", a.wakeupStatus)
			r.Post("/trigger", a.wakeupTrigger)
			r.Get("/recommendations", a.wakeupRecommendations)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/create", a.createPaymentOrder)
			r.Post("/save", a.saveOrder)
			r.Get("/user/{userId}", a.listUserOrders)
			r.Put("/{id}/status", a.updateOrderStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/verify", a.verifyPayment)
			r.Get("/status/{paymentId}", a.paymentStatus)
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Use(a.rateLimit)
			r.Post("/orders/create", a.createShipment)
			r.Get("/orders/{providerOrderId}", a.shipmentDetails)
			r.Post("/assign-awb", a.assignAWB)
			r.Post("/generate-label", a.generateLabel)
			r.Get("/track/{awbCode}", a.trackShipment)
			r.Get("/couriers", a.couriers)
			r.Post("/sync-order", a.syncOrder)
			r.Post("/create-real-order", a.createRealOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusNotFound, "Route not found", nil)
	})
	return r
}
