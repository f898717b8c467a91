package api

import (
	"github.com/artpar/hostprov/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// CompleteOrderRequest is the request body for completing a checkout.
type CompleteOrderRequest struct {
	OrderRef string              `json:"order_ref"`
	Order    domain.OrderRequest `json:"order"`
}

// =============================================================================
// Response Types
// =============================================================================

// OrderResponse is the response for order operations.
type OrderResponse struct {
	Replayed bool                       `json:"replayed"`
	Record   *domain.ProvisionRecord    `json:"record"`
	Result   *domain.ProvisioningResult `json:"result,omitempty"`
}

// OrderListResponse is the response for listing orders.
type OrderListResponse struct {
	Orders []domain.ProvisionRecord `json:"orders"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// WebhookResponse reports what a webhook delivery did.
type WebhookResponse struct {
	Status string                  `json:"status"` // processed, duplicate, ignored
	Record *domain.ProvisionRecord `json:"record,omitempty"`
}

// Webhook statuses.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
