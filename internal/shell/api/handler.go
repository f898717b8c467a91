// Package api provides HTTP handlers for the hostprov API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/artpar/hostprov/internal/shell/checkout"
	"github.com/artpar/hostprov/internal/shell/provisioning"
	"github.com/artpar/hostprov/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// Collaborators
// =============================================================================

// Checkout completes orders and answers record lookups.
type Checkout interface {
	Complete(ctx context.Context, orderRef string, order domain.OrderRequest) (*checkout.Outcome, error)
	HandlePayment(ctx context.Context, ev checkout.PaymentEvent) (*checkout.WebhookOutcome, error)
	Get(ctx context.Context, id string) (*domain.ProvisionRecord, error)
	List(ctx context.Context, opts store.ListOptions) ([]domain.ProvisionRecord, error)
}

// ConnectivityChecker probes the control panel.
type ConnectivityChecker interface {
	TestConnectivity(ctx context.Context) provisioning.Connectivity
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	checkout Checkout
	panel    ConnectivityChecker
	db       Pinger
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(c Checkout, panel ConnectivityChecker, db Pinger, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		checkout: c,
		panel:    panel,
		db:       db,
		logger:   l.With("component", "api"),
	}
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Order Handlers
// =============================================================================

func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req CompleteOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	out, err := h.checkout.Complete(r.Context(), req.OrderRef, req.Order)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.writeJSON(w, orderStatus(out), OrderResponse{
		Replayed: out.Replayed,
		Record:   out.Record,
		Result:   out.Result,
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.checkout.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "order not found", "order_not_found")
			return
		}
		h.logger.Error("failed to get order", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get order", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, OrderResponse{Replayed: true, Record: rec})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	q := r.URL.Query()
	if limit := q.Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer", "validation_error")
			return
		}
		opts.Limit = l
	}
	if offset := q.Get("offset"); offset != "" {
		o, err := strconv.Atoi(offset)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "offset must be an integer", "validation_error")
			return
		}
		opts.Offset = o
	}
	opts.ClientEmail = q.Get("email")
	opts = opts.Normalize()

	recs, err := h.checkout.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list orders", "internal_error")
		return
	}
	if recs == nil {
		recs = []domain.ProvisionRecord{}
	}

	h.writeJSON(w, http.StatusOK, OrderListResponse{
		Orders: recs,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// =============================================================================
// Webhook Handlers
// =============================================================================

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var ev checkout.PaymentEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	out, err := h.checkout.HandlePayment(r.Context(), ev)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	switch {
	case out.Duplicate:
		h.writeJSON(w, http.StatusOK, WebhookResponse{Status: WebhookDuplicate})
	case out.Ignored:
		h.writeJSON(w, http.StatusOK, WebhookResponse{Status: WebhookIgnored})
	default:
		h.writeJSON(w, http.StatusOK, WebhookResponse{Status: WebhookProcessed, Record: out.Checkout.Record})
	}
}

// =============================================================================
// Connectivity Handlers
// =============================================================================

func (h *Handler) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	c := h.panel.TestConnectivity(r.Context())
	if !c.Success {
		h.logger.Warn("control panel unreachable", "detail", c.Detail)
		h.writeJSON(w, http.StatusBadGateway, c)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrOrderRefRequired), errors.Is(err, checkout.ErrEventIDRequired):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	default:
		h.logger.Error("checkout failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to complete order", "internal_error")
	}
}

// orderStatus maps a checkout outcome to a status code: 200 for a replay,
// 201 for a fresh success and 422 when the pipeline aborted.
func orderStatus(out *checkout.Outcome) int {
	switch {
	case out.Replayed:
		return http.StatusOK
	case out.Record != nil && out.Record.Success:
		return http.StatusCreated
	default:
		return http.StatusUnprocessableEntity
	}
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return errors.Is(err, store.ErrNotFound)
}
