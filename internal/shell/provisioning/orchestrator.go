// Package provisioning sequences the post-purchase pipeline for one order:
// create the hosting account, then run every follow-up step best-effort.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/hostprov/internal/core/catalog"
	"github.com/artpar/hostprov/internal/core/dns"
	"github.com/artpar/hostprov/internal/core/domain"
	corenotify "github.com/artpar/hostprov/internal/core/notify"
	"github.com/artpar/hostprov/internal/core/welcome"
	corewhm "github.com/artpar/hostprov/internal/core/whm"
	"github.com/artpar/hostprov/internal/shell/ftp"
	"github.com/artpar/hostprov/internal/shell/notify"
	"github.com/artpar/hostprov/internal/shell/ssl"
)

var (
	ErrUnknownPlan = errors.New("unknown plan")
	ErrEmptyLabel  = errors.New("subdomain label has no usable characters")
)

// =============================================================================
// Collaborators
// =============================================================================

// ControlPanel creates accounts and answers read-only probes.
type ControlPanel interface {
	CreateAccount(ctx context.Context, spec corewhm.AccountSpec) corewhm.Response
	ListPackages(ctx context.Context) corewhm.Response
}

// CredentialGenerator mints the account identifier and password.
type CredentialGenerator interface {
	Generate(order domain.OrderRequest, resolvedDomain string) domain.AccountCredentials
}

// DomainConfigurator performs the ConfigureDomain step.
type DomainConfigurator interface {
	Configure(ctx context.Context, order domain.OrderRequest, resolvedDomain string) (note string, err error)
}

// SSLManager performs the SetupSSL step.
type SSLManager interface {
	Setup(ctx context.Context, domain string) ssl.Setup
}

// PageDeployer uploads the welcome page.
type PageDeployer interface {
	Deploy(ctx context.Context, account domain.AccountCredentials, planName string, sslActive bool) ftp.Result
}

// =============================================================================
// Configuration
// =============================================================================

// Config is read once at construction and never mutated.
type Config struct {
	PlatformSuffix  string        // managed subdomains live under this domain
	ControlPanelURL string        // customer-facing panel URL
	FTPHost         string        // shown in the welcome email; empty means the account domain
	ServerIP        string        // A record target in DNS instructions
	Nameservers     []string      // NS record targets in DNS instructions
	StepTimeout     time.Duration // per remote step, default 30s
}

// Deps groups the orchestrator's collaborators.
type Deps struct {
	Panel       ControlPanel
	Credentials CredentialGenerator
	Domains     DomainConfigurator // nil uses AdvisoryDomainConfigurator
	SSL         SSLManager
	Deployer    PageDeployer
	Mailer      notify.Sender
	Catalog     *catalog.Catalog // nil uses catalog.Default()
	Metrics     *Metrics         // nil disables metrics
}

// Orchestrator runs provisioning pipelines. It holds no per-order state and
// is safe for concurrent use when its collaborators are.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	cfg.Nameservers = append([]string(nil), cfg.Nameservers...)
	if deps.Domains == nil {
		deps.Domains = AdvisoryDomainConfigurator{}
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "orchestrator"),
	}
}

// Catalog returns the plan catalog the orchestrator validates against.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.deps.Catalog
}

// =============================================================================
// Pipeline
// =============================================================================

// run accumulates step outcomes for one order.
type run struct {
	result domain.ProvisioningResult
	order  domain.OrderRequest
	plan   catalog.Plan
	creds  domain.AccountCredentials
	ssl    ssl.Setup
	logger *slog.Logger
}

func (r *run) record(step domain.StepName, status domain.StepStatus, message string) {
	r.result.Steps = append(r.result.Steps, domain.StepOutcome{Step: step, Status: status, Message: message})
}

func (r *run) warn(step domain.StepName, warning string) {
	r.result.Warnings = append(r.result.Warnings, warning)
	r.record(step, domain.StepSoftFailure, warning)
	r.logger.Warn("step failed", "step", step, "warning", warning)
}

// ProcessOrder runs the pipeline for one order and returns the aggregate.
// Only account creation is fatal. Steps run detached from ctx cancellation,
// each bounded by its own timeout.
func (o *Orchestrator) ProcessOrder(ctx context.Context, order domain.OrderRequest) domain.ProvisioningResult {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	r := &run{
		order:  order,
		logger: o.logger.With("plan", order.PlanID, "strategy", order.Strategy),
		result: domain.ProvisioningResult{Warnings: []string{}, Errors: []string{}},
	}

	result := o.process(ctx, r)
	o.deps.Metrics.observeOrder(result, time.Since(start))
	return result
}

func (o *Orchestrator) process(ctx context.Context, r *run) domain.ProvisioningResult {
	// Validate
	plan, target, err := o.validate(r.order)
	if err != nil {
		reason := "Pedido inválido: " + err.Error()
		r.record(domain.StepValidate, domain.StepFatalFailure, reason)
		r.logger.Warn("order rejected", "error", err)
		return domain.NewFailedResult(reason, r.result.Steps)
	}
	r.plan = plan
	r.record(domain.StepValidate, domain.StepSuccess, "")
	r.logger = r.logger.With("domain", target)

	r.creds = o.deps.Credentials.Generate(r.order, target)

	// CreateAccount (fatal)
	if reason, ok := o.createAccount(ctx, r); !ok {
		return domain.NewFailedResult("Error creando cuenta: "+reason, r.result.Steps)
	}

	o.configureDomain(ctx, r)
	o.sendWelcomeEmail(ctx, r)
	o.setupSSL(ctx, r)
	deployed, siteURL := o.deployWelcomePage(ctx, r)
	if r.order.Strategy == domain.StrategyPreOwnedDomain && r.order.CustomDomain != "" {
		o.sendDomainConfigEmail(ctx, r)
	}

	// Aggregate
	creds := r.creds
	r.result.Success = true
	r.result.Credentials = &creds
	r.result.AccountDetails = &domain.AccountDetails{
		Username:            r.creds.Username,
		Domain:              r.creds.Domain,
		PlanID:              r.plan.ID,
		PlanName:            r.plan.Name,
		ControlPanelURL:     o.cfg.ControlPanelURL,
		SiteURL:             siteURL,
		SSLActive:           r.ssl.Active,
		WelcomePageDeployed: deployed,
	}
	r.logger.Info("order provisioned",
		"account", r.creds,
		"warnings", len(r.result.Warnings),
	)
	return r.result
}

func (o *Orchestrator) validate(order domain.OrderRequest) (catalog.Plan, string, error) {
	if err := order.Validate(); err != nil {
		return catalog.Plan{}, "", err
	}
	plan, ok := o.deps.Catalog.Lookup(order.PlanID)
	if !ok {
		return catalog.Plan{}, "", fmt.Errorf("%w: %s", ErrUnknownPlan, order.PlanID)
	}
	if order.Strategy == domain.StrategyManagedSubdomain && dns.SanitizeLabel(order.Subdomain) == "" {
		return catalog.Plan{}, "", ErrEmptyLabel
	}
	target, err := dns.Resolve(order, o.cfg.PlatformSuffix)
	if err != nil {
		return catalog.Plan{}, "", err
	}
	return plan, target, nil
}

// step derives a bounded context for one remote step and records its duration.
func (o *Orchestrator) step(ctx context.Context, name domain.StepName) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	start := time.Now()
	return ctx, func() {
		cancel()
		o.deps.Metrics.observeStep(name, time.Since(start))
	}
}

func (o *Orchestrator) createAccount(ctx context.Context, r *run) (string, bool) {
	ctx, done := o.step(ctx, domain.StepCreateAccount)
	defer done()

	resp := o.deps.Panel.CreateAccount(ctx, corewhm.AccountSpec{
		Username:     r.creds.Username,
		Domain:       r.creds.Domain,
		Password:     r.creds.Password,
		Package:      r.plan.Package,
		ContactEmail: r.order.Client.Email,
	})
	if resp.Success {
		r.record(domain.StepCreateAccount, domain.StepSuccess, resp.Reason)
		o.deps.Metrics.countStep(domain.StepCreateAccount, domain.StepSuccess)
		return "", true
	}

	reason := customerReason(resp)
	r.record(domain.StepCreateAccount, domain.StepFatalFailure, reason)
	o.deps.Metrics.countStep(domain.StepCreateAccount, domain.StepFatalFailure)
	r.logger.Error("account creation failed",
		"account", r.creds,
		"failure", resp.Failure,
		"shape", resp.Shape,
		"reason", resp.Reason,
	)
	return reason, false
}

// customerReason hides protocol details; the client already logged the raw shape.
func customerReason(resp corewhm.Response) string {
	switch resp.Failure {
	case corewhm.FailureProtocol:
		return "respuesta inesperada del panel de control"
	case corewhm.FailureTimeout:
		return "timeout"
	default:
		return resp.Reason
	}
}

func (o *Orchestrator) configureDomain(ctx context.Context, r *run) {
	ctx, done := o.step(ctx, domain.StepConfigureDomain)
	defer done()

	note, err := o.deps.Domains.Configure(ctx, r.order, r.creds.Domain)
	if err != nil {
		r.warn(domain.StepConfigureDomain, "No se pudo configurar el dominio: "+err.Error())
		o.deps.Metrics.countStep(domain.StepConfigureDomain, domain.StepSoftFailure)
		return
	}
	r.record(domain.StepConfigureDomain, domain.StepSuccess, note)
	o.deps.Metrics.countStep(domain.StepConfigureDomain, domain.StepSuccess)
}

func (o *Orchestrator) sendWelcomeEmail(ctx context.Context, r *run) {
	ctx, done := o.step(ctx, domain.StepSendWelcomeEmail)
	defer done()

	ftpHost := o.cfg.FTPHost
	if ftpHost == "" {
		ftpHost = r.creds.Domain
	}
	msg, err := corenotify.WelcomeEmail(corenotify.WelcomeData{
		To:              r.order.Client.Email,
		ClientName:      r.order.Client.Name,
		PlanName:        r.plan.Name,
		Domain:          r.creds.Domain,
		SiteURL:         welcome.SiteURL(r.creds.Domain, false),
		ControlPanelURL: o.cfg.ControlPanelURL,
		FTPHost:         ftpHost,
		Username:        r.creds.Username,
		Password:        r.creds.Password,
		PendingDNS:      r.order.Strategy == domain.StrategyPreOwnedDomain,
	})
	if err == nil {
		_, err = o.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		r.warn(domain.StepSendWelcomeEmail, "No se pudo enviar el email de bienvenida: "+err.Error())
		o.deps.Metrics.countStep(domain.StepSendWelcomeEmail, domain.StepSoftFailure)
		return
	}
	r.result.Emails.WelcomeEmailSent = true
	r.record(domain.StepSendWelcomeEmail, domain.StepSuccess, "")
	o.deps.Metrics.countStep(domain.StepSendWelcomeEmail, domain.StepSuccess)
}

func (o *Orchestrator) setupSSL(ctx context.Context, r *run) {
	ctx, done := o.step(ctx, domain.StepSetupSSL)
	defer done()

	r.ssl = o.deps.SSL.Setup(ctx, r.creds.Domain)
	if !r.ssl.Success {
		r.warn(domain.StepSetupSSL, "No se pudo configurar SSL: "+r.ssl.Note)
		o.deps.Metrics.countStep(domain.StepSetupSSL, domain.StepSoftFailure)
		return
	}
	r.record(domain.StepSetupSSL, domain.StepSuccess, r.ssl.Note)
	o.deps.Metrics.countStep(domain.StepSetupSSL, domain.StepSuccess)
}

func (o *Orchestrator) deployWelcomePage(ctx context.Context, r *run) (bool, string) {
	ctx, done := o.step(ctx, domain.StepDeployWelcomePage)
	defer done()

	res := o.deps.Deployer.Deploy(ctx, r.creds, r.plan.Name, r.ssl.Active)
	siteURL := res.SiteURL
	if siteURL == "" {
		siteURL = welcome.SiteURL(r.creds.Domain, r.ssl.Active)
	}
	if !res.Success {
		r.warn(domain.StepDeployWelcomePage, "No se pudo desplegar la página de bienvenida: "+ftp.Reason(res.Err))
		o.deps.Metrics.countStep(domain.StepDeployWelcomePage, domain.StepSoftFailure)
		return false, siteURL
	}
	r.record(domain.StepDeployWelcomePage, domain.StepSuccess, siteURL)
	o.deps.Metrics.countStep(domain.StepDeployWelcomePage, domain.StepSuccess)
	return true, siteURL
}

func (o *Orchestrator) sendDomainConfigEmail(ctx context.Context, r *run) {
	ctx, done := o.step(ctx, domain.StepSendDomainConfigEmail)
	defer done()

	msg, err := corenotify.DomainConfigEmail(corenotify.DomainConfigData{
		To:           r.order.Client.Email,
		ClientName:   r.order.Client.Name,
		Domain:       r.creds.Domain,
		Instructions: dns.GenerateInstructions(r.creds.Domain, o.cfg.ServerIP, o.cfg.Nameservers),
	})
	if err == nil {
		_, err = o.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		r.warn(domain.StepSendDomainConfigEmail, "No se pudo enviar el email de configuración de dominio: "+err.Error())
		o.deps.Metrics.countStep(domain.StepSendDomainConfigEmail, domain.StepSoftFailure)
		return
	}
	r.result.Emails.DomainConfigEmailSent = true
	r.record(domain.StepSendDomainConfigEmail, domain.StepSuccess, "")
	o.deps.Metrics.countStep(domain.StepSendDomainConfigEmail, domain.StepSuccess)
}

// =============================================================================
// Diagnostics
// =============================================================================

// Connectivity is the outcome of TestConnectivity.
type Connectivity struct {
	Success  bool     `json:"success"`
	Detail   string   `json:"detail"`
	Packages []string `json:"packages,omitempty"`
	Missing  []string `json:"missing_packages,omitempty"`
}

// TestConnectivity lists panel packages and checks every catalog plan maps to one.
func (o *Orchestrator) TestConnectivity(ctx context.Context) Connectivity {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	resp := o.deps.Panel.ListPackages(ctx)
	if !resp.Success {
		return Connectivity{Success: false, Detail: fmt.Sprintf("%s: %s", resp.Failure, resp.Reason)}
	}

	pkgs := corewhm.PackageNames(resp)
	have := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		have[p] = true
	}
	var missing []string
	for _, plan := range o.deps.Catalog.Plans() {
		if !have[plan.Package] {
			missing = append(missing, plan.Package)
		}
	}

	detail := fmt.Sprintf("connected, %d packages available", len(pkgs))
	if len(missing) > 0 {
		detail += fmt.Sprintf(", %d plan packages missing", len(missing))
	}
	return Connectivity{Success: true, Detail: detail, Packages: pkgs, Missing: missing}
}
