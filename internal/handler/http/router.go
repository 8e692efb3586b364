package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/promarket/internal/session"
	"github.com/utafrali/promarket/pkg/health"
	"github.com/utafrali/promarket/pkg/middleware"
)

// ServiceName labels the storefront's metrics and spans.
const ServiceName = "storefront"

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	Session SessionConfig
	CORS    middleware.CORSConfig
	// CheckoutLimit throttles order placement per client. Nil disables it.
	CheckoutLimit *middleware.RateLimiter
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	h *StorefrontHandler,
	registry *session.Registry,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName, "/health", "/metrics"))
	r.Use(middleware.RequestLogger(logger, session.IDFromRequest))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/storefront", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(ContentTypeJSON)
		r.Use(Sessions(registry, cfg.Session))

		r.Get("/catalog", h.ListCatalog)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/fragments/{surface}", h.GetFragment)

			r.Post("/items", h.AddItem)
			r.Post("/items/{id}/increment", h.IncrementItem)
			r.Post("/items/{id}/decrement", h.DecrementItem)
			r.Delete("/items/{id}", h.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.CheckoutLimit)).Post("/", h.Submit)
			r.Get("/form", h.GetCheckoutForm)
			r.Put("/form/{field}", h.InputField)
		})
	})

	return r
}
