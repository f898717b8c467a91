// Package checkout connects paid orders to the provisioning pipeline and
// records the outcome. A successfully provisioned order is never run twice.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/artpar/hostprov/internal/core/crypto"
	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/artpar/hostprov/internal/shell/store"
)

var (
	ErrOrderRefRequired = errors.New("order reference is required")
	ErrEventIDRequired  = errors.New("webhook event id is required")
	ErrNoCredentials    = errors.New("record holds no credentials")
)

// Processor runs the provisioning pipeline for one order.
type Processor interface {
	ProcessOrder(ctx context.Context, order domain.OrderRequest) domain.ProvisioningResult
}

// Outcome is the result of completing a checkout.
type Outcome struct {
	Record *domain.ProvisionRecord
	// Result is nil when the order had already been provisioned.
	Result   *domain.ProvisioningResult
	Replayed bool
}

// Service completes checkouts and answers record lookups.
type Service struct {
	store     store.Store
	processor Processor
	key       []byte
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*orderLock
}

// orderLock is dropped from the map once no caller holds or waits on it.
type orderLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a checkout service. key encrypts stored passwords.
func NewService(s store.Store, p Processor, key []byte, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		processor: p,
		key:       key,
		logger:    logger.With("component", "checkout"),
		locks:     make(map[string]*orderLock),
	}
}

// lockOrder serializes runs for the same order reference within this process.
func (s *Service) lockOrder(ref string) func() {
	s.mu.Lock()
	l, ok := s.locks[ref]
	if !ok {
		l = &orderLock{}
		s.locks[ref] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, ref)
		}
		s.mu.Unlock()
	}
}

// Complete provisions the order unless a successful record already exists.
// Failed orders are re-run and mint new credentials.
func (s *Service) Complete(ctx context.Context, orderRef string, order domain.OrderRequest) (*Outcome, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, ErrOrderRefRequired
	}

	unlock := s.lockOrder(orderRef)
	defer unlock()

	return s.complete(ctx, orderRef, order, "")
}

// complete runs under the order lock. A non-empty eventID is marked seen
// in the same transaction that saves the record, so a delivery that ends
// in an error can be redelivered.
func (s *Service) complete(ctx context.Context, orderRef string, order domain.OrderRequest, eventID string) (*Outcome, error) {
	existing, err := s.store.GetProvisionByOrderRef(ctx, orderRef)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup order %s: %w", orderRef, err)
	}
	if existing != nil && existing.Success {
		if eventID != "" {
			if _, err := s.store.RecordWebhookEvent(ctx, eventID, orderRef); err != nil {
				return nil, fmt.Errorf("record webhook event: %w", err)
			}
		}
		s.logger.Info("order already provisioned", "order_ref", orderRef, "provision_id", existing.ID)
		return &Outcome{Record: existing, Replayed: true}, nil
	}

	result := s.processor.ProcessOrder(ctx, order)

	var sealed []byte
	if result.Credentials != nil {
		sealed, err = crypto.Encrypt([]byte(result.Credentials.Password), s.key)
		if err != nil {
			// The record is still saved, without a stored password.
			s.logger.Error("failed to encrypt password", "order_ref", orderRef, "error", err)
			sealed = nil
		}
	}

	var rec *domain.ProvisionRecord
	if existing == nil {
		rec = domain.NewProvisionRecord(orderRef, order, result, sealed)
	} else {
		rec = existing
		rec.Apply(result, sealed)
		rec.Attempts++
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		if existing == nil {
			err = tx.CreateProvision(ctx, rec)
		} else {
			err = tx.UpdateProvision(ctx, rec)
		}
		if err != nil {
			return err
		}
		if eventID != "" {
			if _, err := tx.RecordWebhookEvent(ctx, eventID, orderRef); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d := result.AccountDetails; d != nil {
			s.logger.Error("account created on the panel but not recorded, reconcile before retrying",
				"order_ref", orderRef,
				"username", d.Username,
				"domain", d.Domain,
				"error", err,
			)
		}
		return nil, fmt.Errorf("save provision for order %s: %w", orderRef, err)
	}

	s.logger.Info("checkout completed",
		"order_ref", orderRef,
		"provision_id", rec.ID,
		"success", rec.Success,
		"attempts", rec.Attempts,
	)
	return &Outcome{Record: rec, Result: &result}, nil
}

// =============================================================================
// Payment Webhooks
// =============================================================================

// PaymentStatusPaid is the only status that triggers provisioning.
const PaymentStatusPaid = "paid"

// PaymentEvent is a payment gateway notification.
type PaymentEvent struct {
	EventID  string              `json:"event_id"`
	OrderRef string              `json:"order_ref"`
	Status   string              `json:"status"`
	Order    domain.OrderRequest `json:"order"`
}

// WebhookOutcome reports what a webhook delivery did.
type WebhookOutcome struct {
	Duplicate bool
	Ignored   bool
	Checkout  *Outcome
}

// HandlePayment processes a payment event. An event is only marked seen
// once its outcome is stored; deliveries that fail may be retried.
func (s *Service) HandlePayment(ctx context.Context, ev PaymentEvent) (*WebhookOutcome, error) {
	if strings.TrimSpace(ev.EventID) == "" {
		return nil, ErrEventIDRequired
	}
	orderRef := strings.TrimSpace(ev.OrderRef)
	if orderRef == "" {
		return nil, ErrOrderRefRequired
	}

	unlock := s.lockOrder(orderRef)
	defer unlock()

	seen, err := s.store.HasWebhookEvent(ctx, ev.EventID)
	if err != nil {
		return nil, fmt.Errorf("lookup webhook event: %w", err)
	}
	if seen {
		s.logger.Info("duplicate webhook delivery", "event_id", ev.EventID, "order_ref", orderRef)
		return &WebhookOutcome{Duplicate: true}, nil
	}
	if ev.Status != PaymentStatusPaid {
		if _, err := s.store.RecordWebhookEvent(ctx, ev.EventID, orderRef); err != nil {
			return nil, fmt.Errorf("record webhook event: %w", err)
		}
		s.logger.Info("ignoring payment event", "event_id", ev.EventID, "status", ev.Status)
		return &WebhookOutcome{Ignored: true}, nil
	}

	out, err := s.complete(ctx, orderRef, ev.Order, ev.EventID)
	if err != nil {
		return nil, err
	}
	return &WebhookOutcome{Checkout: out}, nil
}

// =============================================================================
// Lookups
// =============================================================================

// Get returns a record by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.ProvisionRecord, error) {
	return s.store.GetProvision(ctx, id)
}

// List returns records, newest first.
func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]domain.ProvisionRecord, error) {
	return s.store.ListProvisions(ctx, opts)
}

// Credentials decrypts the stored credentials of an order for support staff.
func (s *Service) Credentials(ctx context.Context, orderRef string) (domain.AccountCredentials, error) {
	rec, err := s.store.GetProvisionByOrderRef(ctx, orderRef)
	if err != nil {
		return domain.AccountCredentials{}, err
	}
	if len(rec.PasswordEncrypted) == 0 {
		return domain.AccountCredentials{}, ErrNoCredentials
	}
	pw, err := crypto.Decrypt(rec.PasswordEncrypted, s.key)
	if err != nil {
		return domain.AccountCredentials{}, fmt.Errorf("decrypt password for order %s: %w", orderRef, err)
	}
	return domain.AccountCredentials{Username: rec.Username, Password: string(pw), Domain: rec.Domain}, nil
}
