package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/artpar/hostprov/internal/shell/api/middleware"
	"github.com/artpar/hostprov/internal/shell/checkout"
	"github.com/artpar/hostprov/internal/shell/provisioning"
	"github.com/artpar/hostprov/internal/shell/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stubCheckout implements Checkout for testing.
type stubCheckout struct {
	records  map[string]*domain.ProvisionRecord
	outcome  *checkout.Outcome
	webhook  *checkout.WebhookOutcome
	err      error
	lastRef  string
	lastOpts store.ListOptions
}

func newStubCheckout() *stubCheckout {
	return &stubCheckout{records: make(map[string]*domain.ProvisionRecord)}
}

func (s *stubCheckout) Complete(ctx context.Context, orderRef string, order domain.OrderRequest) (*checkout.Outcome, error) {
	s.lastRef = orderRef
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func (s *stubCheckout) HandlePayment(ctx context.Context, ev checkout.PaymentEvent) (*checkout.WebhookOutcome, error) {
	s.lastRef = ev.OrderRef
	if s.err != nil {
		return nil, s.err
	}
	return s.webhook, nil
}

func (s *stubCheckout) Get(ctx context.Context, id string) (*domain.ProvisionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, store.NewStoreError("GetProvision", "provision", id, "not found", store.ErrNotFound)
	}
	return rec, nil
}

func (s *stubCheckout) List(ctx context.Context, opts store.ListOptions) ([]domain.ProvisionRecord, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.ProvisionRecord
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out, nil
}

type stubPanel struct {
	result provisioning.Connectivity
}

func (p stubPanel) TestConnectivity(ctx context.Context) provisioning.Connectivity {
	return p.result
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

const testSecret = "hook-secret"

type testAPI struct {
	checkout *stubCheckout
	panel    *stubPanel
	db       *stubPinger
	handler  http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{
		checkout: newStubCheckout(),
		panel:    &stubPanel{result: provisioning.Connectivity{Success: true, Detail: "connected, 3 packages available"}},
		db:       &stubPinger{},
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "hostprov_test_total", Help: "test"}))
	a.handler = SetupAPI(APIConfig{
		Checkout:      a.checkout,
		Panel:         a.panel,
		DB:            a.db,
		Gatherer:      reg,
		WebhookSecret: testSecret,
		Version:       "test",
	})
	return a
}

func (a *testAPI) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			data, _ := json.Marshal(b)
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func sampleRecord(success bool) *domain.ProvisionRecord {
	return &domain.ProvisionRecord{
		ID:          "prov_abc12345",
		OrderRef:    "order-1",
		ClientEmail: "ana@example.com",
		Username:    "misitio",
		Domain:      "misitio.example.net",
		Success:     success,
		Warnings:    []string{},
		Errors:      []string{},
		Attempts:    1,
	}
}

func sampleOrderBody() CompleteOrderRequest {
	return CompleteOrderRequest{
		OrderRef: "order-1",
		Order: domain.OrderRequest{
			Client:       domain.Client{Name: "Ana", Email: "ana@example.com"},
			PlanID:       "basic",
			BillingCycle: domain.BillingMonthly,
			Strategy:     domain.StrategyManagedSubdomain,
			Subdomain:    "misitio",
		},
	}
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	a.db.err = errors.New("database is closed")
	rec = a.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed", body.Checks["database"])
}

func TestMetrics(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hostprov_test_total")
}

func TestOpenAPI(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/openapi.json", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc.Paths, "/api/v1/orders")
	assert.Contains(t, doc.Paths, "/api/v1/orders/{id}")
	assert.Contains(t, doc.Paths, "/api/v1/webhooks/payment")
}

// =============================================================================
// Order Tests
// =============================================================================

func TestCompleteOrder_Success(t *testing.T) {
	a := newTestAPI(t)
	result := domain.ProvisioningResult{Success: true, Warnings: []string{}, Errors: []string{}}
	a.checkout.outcome = &checkout.Outcome{Record: sampleRecord(true), Result: &result}

	rec := a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "order-1", a.checkout.lastRef)

	var body OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Replayed)
	require.NotNil(t, body.Result)
	assert.True(t, body.Result.Success)
	assert.Equal(t, "misitio", body.Record.Username)
}

func TestCompleteOrder_Replay(t *testing.T) {
	a := newTestAPI(t)
	a.checkout.outcome = &checkout.Outcome{Record: sampleRecord(true), Replayed: true}

	rec := a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Replayed)
	assert.Nil(t, body.Result)
}

func TestCompleteOrder_PipelineFailure(t *testing.T) {
	a := newTestAPI(t)
	result := domain.NewFailedResult("Error creando cuenta: timeout", nil)
	rec := sampleRecord(false)
	rec.Errors = result.Errors
	a.checkout.outcome = &checkout.Outcome{Record: rec, Result: &result}

	resp := a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "Error creando cuenta: timeout")
}

func TestCompleteOrder_BadRequests(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/orders", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.checkout.err = checkout.ErrOrderRefRequired
	rec = a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.checkout.err = errors.New("disk full")
	rec = a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestCompleteOrder_NeverReturnsPassword(t *testing.T) {
	a := newTestAPI(t)
	r := sampleRecord(true)
	r.PasswordEncrypted = []byte("ciphertext")
	result := domain.ProvisioningResult{
		Success:     true,
		Credentials: &domain.AccountCredentials{Username: "misitio", Password: "Pw-1234-secret", Domain: "misitio.example.net"},
	}
	a.checkout.outcome = &checkout.Outcome{Record: r, Result: &result}

	rec := a.do(http.MethodPost, "/api/v1/orders", sampleOrderBody(), nil)

	assert.NotContains(t, rec.Body.String(), "Pw-1234-secret")
	assert.NotContains(t, rec.Body.String(), "ciphertext")
}

func TestGetOrder(t *testing.T) {
	a := newTestAPI(t)
	a.checkout.records["prov_abc12345"] = sampleRecord(true)

	rec := a.do(http.MethodGet, "/api/v1/orders/prov_abc12345", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/orders/prov_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	a := newTestAPI(t)
	a.checkout.records["prov_abc12345"] = sampleRecord(true)

	rec := a.do(http.MethodGet, "/api/v1/orders?email=ana@example.com&limit=5&offset=10", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", a.checkout.lastOpts.ClientEmail)
	assert.Equal(t, 5, a.checkout.lastOpts.Limit)
	assert.Equal(t, 10, a.checkout.lastOpts.Offset)

	var body OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Orders, 1)
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/orders", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders":[]`)
}

func TestListOrders_InvalidLimit(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/orders?limit=ten", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Webhook Tests
// =============================================================================

func paymentEvent() checkout.PaymentEvent {
	return checkout.PaymentEvent{
		EventID:  "evt_1",
		OrderRef: "order-1",
		Status:   checkout.PaymentStatusPaid,
		Order:    sampleOrderBody().Order,
	}
}

func TestPaymentWebhook_RequiresSecret(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/webhooks/payment", paymentEvent(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/webhooks/payment", paymentEvent(),
		map[string]string{middleware.HeaderWebhookSecret: "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, a.checkout.lastRef)
}

func TestPaymentWebhook_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome *checkout.WebhookOutcome
		want    string
	}{
		{"processed", &checkout.WebhookOutcome{Checkout: &checkout.Outcome{Record: sampleRecord(true)}}, WebhookProcessed},
		{"duplicate", &checkout.WebhookOutcome{Duplicate: true}, WebhookDuplicate},
		{"ignored", &checkout.WebhookOutcome{Ignored: true}, WebhookIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			a.checkout.webhook = tt.outcome

			rec := a.do(http.MethodPost, "/api/v1/webhooks/payment", paymentEvent(),
				map[string]string{middleware.HeaderWebhookSecret: testSecret})

			require.Equal(t, http.StatusOK, rec.Code)
			var body WebhookResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
		})
	}
}

func TestPaymentWebhook_MissingEventID(t *testing.T) {
	a := newTestAPI(t)
	a.checkout.err = checkout.ErrEventIDRequired

	rec := a.do(http.MethodPost, "/api/v1/webhooks/payment", paymentEvent(),
		map[string]string{middleware.HeaderWebhookSecret: testSecret})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Connectivity Tests
// =============================================================================

func TestConnectivity(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/connectivity", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connected, 3 packages available")

	a.panel.result = provisioning.Connectivity{Success: false, Detail: "http: HTTP 403 Forbidden"}
	rec = a.do(http.MethodGet, "/api/v1/connectivity", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
