package domain

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AccountCredentials is generated once per order and never regenerated mid-run.
type AccountCredentials struct {
	Username string `json:"username"`
	Password string `json:"-"` // Never serialize
	Domain   string `json:"domain"`
}

// LogValue keeps the password out of structured logs.
func (c AccountCredentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("domain", c.Domain),
		slog.String("password", "[redacted]"),
	)
}

// AccountDetails is the public view of a provisioned account.
type AccountDetails struct {
	Username            string `json:"username"`
	Domain              string `json:"domain"`
	PlanID              string `json:"plan_id"`
	PlanName            string `json:"plan_name"`
	ControlPanelURL     string `json:"control_panel_url"`
	SiteURL             string `json:"site_url"`
	SSLActive           bool   `json:"ssl_active"`
	WelcomePageDeployed bool   `json:"welcome_page_deployed"`
}

// =============================================================================
// Provision Record
// =============================================================================

// ProvisionRecord is the caller-side persisted subset of a provisioning run.
type ProvisionRecord struct {
	ID                    string         `json:"id"`
	OrderRef              string         `json:"order_ref"`
	ClientEmail           string         `json:"client_email"`
	Strategy              DomainStrategy `json:"domain_strategy"`
	PlanID                string         `json:"plan_id"`
	BillingCycle          BillingCycle   `json:"billing_cycle"`
	Username              string         `json:"username,omitempty"`
	Domain                string         `json:"domain,omitempty"`
	PasswordEncrypted     []byte         `json:"-"` // Never serialize
	Success               bool           `json:"success"`
	SSLActive             bool           `json:"ssl_active"`
	WelcomePageDeployed   bool           `json:"welcome_page_deployed"`
	WelcomeEmailSent      bool           `json:"welcome_email_sent"`
	DomainConfigEmailSent bool           `json:"domain_config_email_sent"`
	Warnings              []string       `json:"warnings"`
	Errors                []string       `json:"errors"`
	Attempts              int            `json:"attempts"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// GenerateProvisionID generates a new provision record ID.
func GenerateProvisionID() string {
	return "prov_" + uuid.New().String()[:8]
}

// NewProvisionRecord builds a record from an order and its result.
// The encrypted password is supplied by the caller.
func NewProvisionRecord(orderRef string, order OrderRequest, result ProvisioningResult, passwordEncrypted []byte) *ProvisionRecord {
	now := time.Now()
	rec := &ProvisionRecord{
		ID:           GenerateProvisionID(),
		OrderRef:     orderRef,
		ClientEmail:  order.Client.Email,
		Strategy:     order.Strategy,
		PlanID:       order.PlanID,
		BillingCycle: order.BillingCycle,
		Attempts:     1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec.Apply(result, passwordEncrypted)
	return rec
}

// Apply overwrites the outcome fields with a newer run's result.
func (r *ProvisionRecord) Apply(result ProvisioningResult, passwordEncrypted []byte) {
	r.Success = result.Success
	r.Warnings = append([]string{}, result.Warnings...)
	r.Errors = append([]string{}, result.Errors...)
	r.WelcomeEmailSent = result.Emails.WelcomeEmailSent
	r.DomainConfigEmailSent = result.Emails.DomainConfigEmailSent
	r.PasswordEncrypted = passwordEncrypted
	if d := result.AccountDetails; d != nil {
		r.Username = d.Username
		r.Domain = d.Domain
		r.SSLActive = d.SSLActive
		r.WelcomePageDeployed = d.WelcomePageDeployed
	} else {
		r.Username = ""
		r.Domain = ""
		r.SSLActive = false
		r.WelcomePageDeployed = false
	}
	r.UpdatedAt = time.Now()
}
