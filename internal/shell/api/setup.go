package api

import (
	"log/slog"
	"net/http"

	"github.com/artpar/hostprov/internal/shell/api/middleware"
	"github.com/artpar/hostprov/internal/shell/api/openapi"
	"github.com/artpar/hostprov/internal/shell/checkout"
	"github.com/artpar/hostprov/internal/shell/provisioning"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Checkout Checkout
	Panel    ConnectivityChecker
	DB       Pinger
	Logger   *slog.Logger

	// Gatherer backs /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer

	// WebhookSecret validates X-Webhook-Secret on payment webhooks.
	// Empty disables the webhook endpoint.
	WebhookSecret string

	Version   string
	ServerURL string
}

// SetupAPI creates the complete API router.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	h := NewHandler(cfg.Checkout, cfg.Panel, cfg.DB, cfg.Logger)
	spec := newSpec(cfg)
	secret := middleware.NewSharedSecret(middleware.SecretConfig{
		Secret: cfg.WebhookSecret,
		Logger: cfg.Logger,
	})

	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.requestIDHeader)

	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/openapi.json", spec.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.jsonContentType)

		// Health endpoints
		r.Get("/health", h.handleHealth)
		r.Get("/ready", h.handleReady)

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.handleCompleteOrder)
				r.Get("/", h.handleListOrders)
				r.Get("/{id}", h.handleGetOrder)
			})

			r.With(secret.Handler).Post("/webhooks/payment", h.handlePaymentWebhook)

			r.Get("/connectivity", h.handleConnectivity)
		})
	})

	return r
}

// newSpec documents the routes registered by SetupAPI.
func newSpec(cfg APIConfig) *openapi.Generator {
	opts := []openapi.Option{openapi.WithTitle("hostprov API")}
	if cfg.Version != "" {
		opts = append(opts, openapi.WithVersion(cfg.Version))
	}
	if cfg.ServerURL != "" {
		opts = append(opts, openapi.WithServer(cfg.ServerURL))
	}
	g := openapi.NewGenerator(opts...)

	g.Register(
		openapi.Route{
			Method: http.MethodGet, Path: "/health", OperationID: "health",
			Summary: "Liveness check", Tag: "Health", Response: HealthResponse{},
		},
		openapi.Route{
			Method: http.MethodGet, Path: "/ready", OperationID: "ready",
			Summary: "Readiness check", Tag: "Health", Response: ReadyResponse{},
			Errors: []int{http.StatusServiceUnavailable},
		},
		openapi.Route{
			Method: http.MethodPost, Path: "/api/v1/orders", OperationID: "completeOrder",
			Summary: "Provision the hosting account of a paid order", Tag: "Orders",
			Request: CompleteOrderRequest{}, Response: OrderResponse{}, Status: http.StatusCreated,
			Errors: []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError},
		},
		openapi.Route{
			Method: http.MethodGet, Path: "/api/v1/orders", OperationID: "listOrders",
			Summary: "List provisioning records", Tag: "Orders",
			Response: OrderListResponse{}, Query: []string{"email", "limit", "offset"},
			Errors: []int{http.StatusBadRequest},
		},
		openapi.Route{
			Method: http.MethodGet, Path: "/api/v1/orders/{id}", OperationID: "getOrder",
			Summary: "Get a provisioning record", Tag: "Orders",
			Response: OrderResponse{}, Errors: []int{http.StatusNotFound},
		},
		openapi.Route{
			Method: http.MethodPost, Path: "/api/v1/webhooks/payment", OperationID: "paymentWebhook",
			Summary: "Payment gateway notification", Tag: "Webhooks",
			Request: checkout.PaymentEvent{}, Response: WebhookResponse{},
			Header: middleware.HeaderWebhookSecret,
			Errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusServiceUnavailable},
		},
		openapi.Route{
			Method: http.MethodGet, Path: "/api/v1/connectivity", OperationID: "connectivity",
			Summary: "Check the control panel and plan packages", Tag: "Panel",
			Response: provisioning.Connectivity{}, Errors: []int{http.StatusBadGateway},
		},
	)
	return g
}
