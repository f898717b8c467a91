package store

import (
	"context"
	"time"

	"github.com/artpar/hostprov/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for provisioning records.
type Store interface {
	// Provision operations
	CreateProvision(ctx context.Context, rec *domain.ProvisionRecord) error
	GetProvision(ctx context.Context, id string) (*domain.ProvisionRecord, error)
	GetProvisionByOrderRef(ctx context.Context, orderRef string) (*domain.ProvisionRecord, error)
	UpdateProvision(ctx context.Context, rec *domain.ProvisionRecord) error
	ListProvisions(ctx context.Context, opts ListOptions) ([]domain.ProvisionRecord, error)
	ListSSLPending(ctx context.Context, limit int) ([]domain.ProvisionRecord, error)
	MarkSSLActive(ctx context.Context, id string, at time.Time) error

	// Webhook deduplication
	HasWebhookEvent(ctx context.Context, eventID string) (bool, error)
	RecordWebhookEvent(ctx context.Context, eventID, orderRef string) (bool, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit       int
	Offset      int
	ClientEmail string // optional filter
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
