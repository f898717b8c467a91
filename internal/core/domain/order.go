// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Order Errors
// =============================================================================

var (
	ErrClientNameRequired    = errors.New("client name is required")
	ErrClientEmailRequired   = errors.New("client email is required")
	ErrClientEmailInvalid    = errors.New("client email is invalid")
	ErrPlanRequired          = errors.New("plan is required")
	ErrInvalidBillingCycle   = errors.New("invalid billing cycle: must be monthly, quarterly, or annual")
	ErrInvalidDomainStrategy = errors.New("invalid-domain-strategy")
	ErrDomainFieldMismatch   = errors.New("exactly one domain field must be set for the chosen strategy")
	ErrSubdomainRequired     = errors.New("subdomain label is required")
	ErrInvalidHostname       = errors.New("invalid hostname format")
	ErrHostnameTooLong       = errors.New("hostname must be under 253 characters")
)

// =============================================================================
// Domain Strategy
// =============================================================================

// DomainStrategy selects how the account's public domain is obtained.
type DomainStrategy string

const (
	StrategyManagedSubdomain DomainStrategy = "managed-subdomain"
	StrategyPreOwnedDomain   DomainStrategy = "pre-owned-domain"
	StrategyRegisterNew      DomainStrategy = "register-new"
)

// IsValid checks if the strategy is one of the supported values.
func (s DomainStrategy) IsValid() bool {
	switch s {
	case StrategyManagedSubdomain, StrategyPreOwnedDomain, StrategyRegisterNew:
		return true
	default:
		return false
	}
}

// BillingCycle is the billing period purchased with the plan.
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingAnnual    BillingCycle = "annual"
)

// IsValid checks if the billing cycle is supported.
func (c BillingCycle) IsValid() bool {
	switch c {
	case BillingMonthly, BillingQuarterly, BillingAnnual:
		return true
	default:
		return false
	}
}

// =============================================================================
// Order Request
// =============================================================================

// Client holds the customer's contact data.
type Client struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// OrderRequest is the immutable input of a provisioning run.
// Exactly one of Subdomain, CustomDomain and NewDomain is set, matching Strategy.
type OrderRequest struct {
	Client       Client         `json:"client" yaml:"client"`
	PlanID       string         `json:"plan_id" yaml:"plan_id"`
	BillingCycle BillingCycle   `json:"billing_cycle" yaml:"billing_cycle"`
	Strategy     DomainStrategy `json:"domain_strategy" yaml:"domain_strategy"`
	Subdomain    string         `json:"subdomain,omitempty" yaml:"subdomain,omitempty"`
	CustomDomain string         `json:"custom_domain,omitempty" yaml:"custom_domain,omitempty"`
	NewDomain    string         `json:"new_domain,omitempty" yaml:"new_domain,omitempty"`
}

// DomainInput returns the strategy-specific domain text.
func (o OrderRequest) DomainInput() string {
	switch o.Strategy {
	case StrategyManagedSubdomain:
		return o.Subdomain
	case StrategyPreOwnedDomain:
		return o.CustomDomain
	case StrategyRegisterNew:
		return o.NewDomain
	default:
		return ""
	}
}

// Validate checks the order before the pipeline starts.
// The label of a managed subdomain is checked for emptiness only; the
// caller checks that it survives sanitization.
func (o OrderRequest) Validate() error {
	if strings.TrimSpace(o.Client.Name) == "" {
		return ErrClientNameRequired
	}
	if strings.TrimSpace(o.Client.Email) == "" {
		return ErrClientEmailRequired
	}
	if !IsValidEmail(o.Client.Email) {
		return ErrClientEmailInvalid
	}
	if strings.TrimSpace(o.PlanID) == "" {
		return ErrPlanRequired
	}
	if !o.BillingCycle.IsValid() {
		return ErrInvalidBillingCycle
	}
	if !o.Strategy.IsValid() {
		return ErrInvalidDomainStrategy
	}

	set := 0
	for _, f := range []string{o.Subdomain, o.CustomDomain, o.NewDomain} {
		if strings.TrimSpace(f) != "" {
			set++
		}
	}
	if set != 1 || strings.TrimSpace(o.DomainInput()) == "" {
		if o.Strategy == StrategyManagedSubdomain && set == 0 {
			return ErrSubdomainRequired
		}
		return ErrDomainFieldMismatch
	}

	if o.Strategy != StrategyManagedSubdomain {
		if err := ValidateHostname(o.DomainInput()); err != nil {
			return fmt.Errorf("%s: %w", o.Strategy, err)
		}
	}
	return nil
}

// =============================================================================
// Validation Helpers
// =============================================================================

var (
	hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidateHostname validates a fully qualified hostname.
func ValidateHostname(hostname string) error {
	// A fully qualified name may carry the root dot.
	hostname = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(hostname)), ".")
	if hostname == "" {
		return ErrInvalidHostname
	}
	if len(hostname) > 253 {
		return ErrHostnameTooLong
	}
	if !hostnameRegex.MatchString(hostname) {
		return ErrInvalidHostname
	}
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}
