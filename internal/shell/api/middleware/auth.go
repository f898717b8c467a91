// Package middleware provides HTTP middleware for the hostprov API.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// HeaderWebhookSecret carries the shared secret of payment gateway webhooks.
const HeaderWebhookSecret = "X-Webhook-Secret"

// =============================================================================
// Shared Secret Middleware
// =============================================================================

// SecretConfig holds configuration for the shared-secret middleware.
type SecretConfig struct {
	// Header is the request header holding the secret. Defaults to X-Webhook-Secret.
	Header string

	// Secret is the expected value. An empty secret rejects every request.
	Secret string

	Logger *slog.Logger
}

// SharedSecret rejects requests whose secret header does not match.
type SharedSecret struct {
	config SecretConfig
}

// NewSharedSecret creates the middleware.
func NewSharedSecret(cfg SecretConfig) *SharedSecret {
	if cfg.Header == "" {
		cfg.Header = HeaderWebhookSecret
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SharedSecret{config: cfg}
}

// Handler returns the middleware handler function.
func (m *SharedSecret) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.config.Secret == "" {
			m.config.Logger.Error("webhook secret not configured", "path", r.URL.Path)
			writeJSONError(w, http.StatusServiceUnavailable, "webhook endpoint disabled", "webhook_disabled")
			return
		}

		got := r.Header.Get(m.config.Header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.config.Secret)) != 1 {
			m.config.Logger.Warn("invalid webhook secret",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "invalid webhook secret", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// JSON Error Response
// =============================================================================

// ErrorResponse mirrors the API's error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
