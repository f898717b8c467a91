package provisioning

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/hostprov/internal/core/credentials"
	"github.com/artpar/hostprov/internal/core/dns"
	"github.com/artpar/hostprov/internal/core/domain"
	corenotify "github.com/artpar/hostprov/internal/core/notify"
	corewhm "github.com/artpar/hostprov/internal/core/whm"
	"github.com/artpar/hostprov/internal/shell/ftp"
	"github.com/artpar/hostprov/internal/shell/notify"
	"github.com/artpar/hostprov/internal/shell/ssl"
)

// =============================================================================
// Stubs
// =============================================================================

type stubPanel struct {
	create   corewhm.Response
	packages corewhm.Response
	calls    int
	spec     corewhm.AccountSpec
}

func (p *stubPanel) CreateAccount(_ context.Context, spec corewhm.AccountSpec) corewhm.Response {
	p.calls++
	p.spec = spec
	return p.create
}

func (p *stubPanel) ListPackages(context.Context) corewhm.Response {
	return p.packages
}

type stubDomains struct {
	err   error
	calls int
}

func (d *stubDomains) Configure(_ context.Context, _ domain.OrderRequest, resolved string) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return "ok " + resolved, nil
}

type stubSSL struct {
	setup ssl.Setup
	calls int
}

func (s *stubSSL) Setup(context.Context, string) ssl.Setup {
	s.calls++
	return s.setup
}

type stubDeployer struct {
	fail      error
	calls     int
	sslActive bool
}

func (d *stubDeployer) Deploy(_ context.Context, account domain.AccountCredentials, _ string, sslActive bool) ftp.Result {
	d.calls++
	d.sslActive = sslActive
	scheme := "http://"
	if sslActive {
		scheme = "https://"
	}
	if d.fail != nil {
		return ftp.Result{Success: false, SiteURL: scheme + account.Domain, Err: d.fail}
	}
	return ftp.Result{Success: true, SiteURL: scheme + account.Domain}
}

type stubMailer struct {
	mu     sync.Mutex
	failOn map[string]error
	sent   []corenotify.Message
}

func (m *stubMailer) Send(_ context.Context, msg corenotify.Message) (notify.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[msg.Tag]; err != nil {
		return notify.Ack{}, err
	}
	m.sent = append(m.sent, msg)
	return notify.Ack{ID: "ack", Transport: "stub"}, nil
}

type fixedCredentials struct{}

func (fixedCredentials) Generate(_ domain.OrderRequest, resolved string) domain.AccountCredentials {
	return domain.AccountCredentials{Username: "misitio", Password: "Hp0001abcD$fgh", Domain: resolved}
}

type fixture struct {
	panel    *stubPanel
	domains  *stubDomains
	ssl      *stubSSL
	deployer *stubDeployer
	mailer   *stubMailer
	metrics  *Metrics
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		panel: &stubPanel{
			create: corewhm.Response{Success: true, Shape: corewhm.ShapeMetadata},
		},
		domains:  &stubDomains{},
		ssl:      &stubSSL{setup: ssl.Setup{Success: true, Active: false, Note: "pendiente"}},
		deployer: &stubDeployer{},
		mailer:   &stubMailer{failOn: map[string]error{}},
	}
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	f.metrics = m
	f.build(fixedCredentials{})
	return f
}

func (f *fixture) build(gen CredentialGenerator) {
	f.orch = NewOrchestrator(Config{
		PlatformSuffix:  "hostprov.net",
		ControlPanelURL: "https://panel.hostprov.net:2083",
		ServerIP:        "203.0.113.10",
		Nameservers:     []string{"ns1.hostprov.net", "ns2.hostprov.net"},
		StepTimeout:     time.Second,
	}, Deps{
		Panel:       f.panel,
		Credentials: gen,
		Domains:     f.domains,
		SSL:         f.ssl,
		Deployer:    f.deployer,
		Mailer:      f.mailer,
		Metrics:     f.metrics,
	}, nil)
}

func managedOrder() domain.OrderRequest {
	return domain.OrderRequest{
		Client:       domain.Client{Name: "Ana Pérez", Email: "ana@example.com"},
		PlanID:       "basic",
		BillingCycle: domain.BillingMonthly,
		Strategy:     domain.StrategyManagedSubdomain,
		Subdomain:    "MiSitio!",
	}
}

func preOwnedOrder() domain.OrderRequest {
	o := managedOrder()
	o.Strategy = domain.StrategyPreOwnedDomain
	o.Subdomain = ""
	o.CustomDomain = "example.com"
	return o
}

// =============================================================================
// Scenario Tests
// =============================================================================

func TestProcessOrder_ManagedSubdomain(t *testing.T) {
	f := newFixture(t)
	f.build(credentials.NewGenerator())

	result := f.orch.ProcessOrder(context.Background(), managedOrder())

	require.True(t, result.Success)
	require.NotNil(t, result.AccountDetails)
	assert.Equal(t, "misitio.hostprov.net", result.AccountDetails.Domain)
	assert.Equal(t, "misitio.hostprov.net", f.panel.spec.Domain)
	assert.Equal(t, "misitio", result.AccountDetails.Username)
	assert.Equal(t, "Plan Básico", result.AccountDetails.PlanName)
	assert.Equal(t, "hostprov_basic", f.panel.spec.Package)
	assert.Equal(t, "ana@example.com", f.panel.spec.ContactEmail)
	assert.True(t, result.Emails.WelcomeEmailSent)
	assert.False(t, result.Emails.DomainConfigEmailSent)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Errors)
	assert.True(t, result.AccountDetails.WelcomePageDeployed)

	require.NotNil(t, result.Credentials)
	assert.NoError(t, credentials.CheckPasswordPolicy(result.Credentials.Password, result.Credentials.Username))
	assert.Equal(t, result.Credentials.Password, f.panel.spec.Password)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, corenotify.TagWelcome, f.mailer.sent[0].Tag)
	assert.Contains(t, f.mailer.sent[0].Text, result.Credentials.Password)
}

func TestProcessOrder_PreOwnedCreateFails(t *testing.T) {
	f := newFixture(t)
	f.panel.create = corewhm.Failed(corewhm.FailureRemote, "domain already exists")

	result := f.orch.ProcessOrder(context.Background(), preOwnedOrder())

	assert.False(t, result.Success)
	assert.Equal(t, []string{"Error creando cuenta: domain already exists"}, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Nil(t, result.AccountDetails)
	assert.Nil(t, result.Credentials)

	assert.Equal(t, 1, f.panel.calls)
	assert.Equal(t, 0, f.domains.calls)
	assert.Equal(t, 0, f.ssl.calls)
	assert.Equal(t, 0, f.deployer.calls)
	assert.Empty(t, f.mailer.sent)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.orders.WithLabelValues(OutcomeFailed)))
}

func TestProcessOrder_DeployFailureIsSingleWarning(t *testing.T) {
	f := newFixture(t)
	f.deployer.fail = ftp.ErrAuth

	result := f.orch.ProcessOrder(context.Background(), managedOrder())

	assert.True(t, result.Success)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "página de bienvenida")
	assert.False(t, result.AccountDetails.WelcomePageDeployed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.orders.WithLabelValues(OutcomeWarning)))
}

func TestProcessOrder_PreOwnedSendsDomainConfigEmail(t *testing.T) {
	f := newFixture(t)

	result := f.orch.ProcessOrder(context.Background(), preOwnedOrder())

	require.True(t, result.Success)
	assert.Equal(t, "example.com", result.AccountDetails.Domain)
	assert.True(t, result.Emails.WelcomeEmailSent)
	assert.True(t, result.Emails.DomainConfigEmailSent)

	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, corenotify.TagDomainConfig, f.mailer.sent[1].Tag)
	assert.Contains(t, f.mailer.sent[1].Text, "ns1.hostprov.net")
	assert.Contains(t, f.mailer.sent[1].Text, "203.0.113.10")
}

func TestProcessOrder_RegisterNewSkipsDomainConfigEmail(t *testing.T) {
	f := newFixture(t)
	o := managedOrder()
	o.Strategy = domain.StrategyRegisterNew
	o.Subdomain = ""
	o.NewDomain = "Nuevo-Sitio.es"

	result := f.orch.ProcessOrder(context.Background(), o)

	require.True(t, result.Success)
	assert.Equal(t, "nuevo-sitio.es", result.AccountDetails.Domain)
	assert.False(t, result.Emails.DomainConfigEmailSent)
	assert.Len(t, f.mailer.sent, 1)
}

func TestProcessOrder_SoftFailuresAccumulateInOrder(t *testing.T) {
	f := newFixture(t)
	f.domains.err = errors.New("zone busy")
	f.mailer.failOn[corenotify.TagWelcome] = errors.New("relay down")
	f.mailer.failOn[corenotify.TagDomainConfig] = errors.New("relay down")
	f.ssl.setup = ssl.Setup{Success: false, Note: "boom"}
	f.deployer.fail = ftp.ErrTimeout

	result := f.orch.ProcessOrder(context.Background(), preOwnedOrder())

	assert.True(t, result.Success)
	require.Len(t, result.Warnings, 5)
	assert.Contains(t, result.Warnings[0], "dominio")
	assert.Contains(t, result.Warnings[1], "bienvenida")
	assert.Contains(t, result.Warnings[2], "SSL")
	assert.Contains(t, result.Warnings[3], "tiempo de espera agotado")
	assert.Contains(t, result.Warnings[4], "configuración de dominio")
	assert.False(t, result.Emails.WelcomeEmailSent)
	assert.False(t, result.Emails.DomainConfigEmailSent)

	var steps []domain.StepName
	for _, s := range result.Steps {
		steps = append(steps, s.Step)
	}
	assert.Equal(t, []domain.StepName{
		domain.StepValidate,
		domain.StepCreateAccount,
		domain.StepConfigureDomain,
		domain.StepSendWelcomeEmail,
		domain.StepSetupSSL,
		domain.StepDeployWelcomePage,
		domain.StepSendDomainConfigEmail,
	}, steps)
}

func TestProcessOrder_SSLActiveSelectsHTTPS(t *testing.T) {
	f := newFixture(t)
	f.ssl.setup = ssl.Setup{Success: true, Active: true, Note: "SSL activo"}

	result := f.orch.ProcessOrder(context.Background(), managedOrder())

	assert.True(t, f.deployer.sslActive)
	assert.Equal(t, "https://misitio.hostprov.net", result.AccountDetails.SiteURL)
	assert.True(t, result.AccountDetails.SSLActive)
}

func TestProcessOrder_SSLPendingSelectsHTTP(t *testing.T) {
	f := newFixture(t)

	result := f.orch.ProcessOrder(context.Background(), managedOrder())

	assert.False(t, f.deployer.sslActive)
	assert.Equal(t, "http://misitio.hostprov.net", result.AccountDetails.SiteURL)
	assert.Empty(t, result.Warnings)
}

func TestProcessOrder_ProtocolFailureHidesRawShape(t *testing.T) {
	f := newFixture(t)
	f.panel.create = corewhm.Normalize([]byte(`{"weird":true}`))

	result := f.orch.ProcessOrder(context.Background(), managedOrder())

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Error creando cuenta: respuesta inesperada del panel de control", result.Errors[0])
	assert.NotContains(t, result.Errors[0], "weird")
}

func TestProcessOrder_CallerCancellationDoesNotAbortSteps(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.orch.ProcessOrder(ctx, managedOrder())

	assert.True(t, result.Success)
	assert.Equal(t, 1, f.deployer.calls)
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestProcessOrder_InvalidOrdersMakeNoRemoteCalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *domain.OrderRequest)
		want   string
	}{
		{"unknown plan", func(o *domain.OrderRequest) { o.PlanID = "gold" }, "unknown plan"},
		{"label without usable characters", func(o *domain.OrderRequest) { o.Subdomain = "¡!" }, "no usable characters"},
		{"missing email", func(o *domain.OrderRequest) { o.Client.Email = "" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := managedOrder()
			tt.mutate(&o)

			result := f.orch.ProcessOrder(context.Background(), o)

			assert.False(t, result.Success)
			require.Len(t, result.Errors, 1)
			assert.True(t, strings.HasPrefix(result.Errors[0], "Pedido inválido: "))
			assert.Contains(t, result.Errors[0], tt.want)
			assert.Equal(t, 0, f.panel.calls)
			require.Len(t, result.Steps, 1)
			assert.Equal(t, domain.StepFatalFailure, result.Steps[0].Status)
		})
	}
}

// =============================================================================
// Connectivity Tests
// =============================================================================

func TestTestConnectivity(t *testing.T) {
	f := newFixture(t)
	f.panel.packages = corewhm.Normalize([]byte(`{"metadata":{"result":1},"data":{"pkg":[{"name":"hostprov_basic"},{"name":"hostprov_pro"}]}}`))

	c := f.orch.TestConnectivity(context.Background())

	assert.True(t, c.Success)
	assert.Equal(t, []string{"hostprov_basic", "hostprov_pro"}, c.Packages)
	assert.Equal(t, []string{"hostprov_business"}, c.Missing)
	assert.Contains(t, c.Detail, "1 plan packages missing")
}

func TestTestConnectivity_Failure(t *testing.T) {
	f := newFixture(t)
	f.panel.packages = corewhm.Failed(corewhm.FailureTimeout, "timeout")

	c := f.orch.TestConnectivity(context.Background())

	assert.False(t, c.Success)
	assert.Equal(t, "timeout: timeout", c.Detail)
}

// =============================================================================
// Domain Configurator Tests
// =============================================================================

func TestAdvisoryDomainConfigurator(t *testing.T) {
	var c AdvisoryDomainConfigurator
	for _, s := range []domain.DomainStrategy{
		domain.StrategyManagedSubdomain,
		domain.StrategyPreOwnedDomain,
		domain.StrategyRegisterNew,
	} {
		note, err := c.Configure(context.Background(), domain.OrderRequest{Strategy: s}, "example.com")
		assert.NoError(t, err)
		assert.Contains(t, note, "example.com")
	}

	_, err := c.Configure(context.Background(), domain.OrderRequest{Strategy: "x"}, "example.com")
	assert.ErrorIs(t, err, domain.ErrInvalidDomainStrategy)
}

func TestDNSDomainConfigurator(t *testing.T) {
	var looked []string
	lookup := func(_ context.Context, host string) dns.VerificationInput {
		looked = append(looked, host)
		switch host {
		case "delegado.es":
			return dns.VerificationInput{Hostname: host, NSRecords: []string{"ns1.example.net."}}
		case "apuntado.es":
			return dns.VerificationInput{Hostname: host, ARecords: []net.IP{net.ParseIP("203.0.113.10")}}
		default:
			return dns.VerificationInput{Hostname: host, LookupError: "no DNS records found for " + host}
		}
	}
	c := NewDNSDomainConfigurator(lookup, "203.0.113.10", []string{"ns1.example.net", "ns2.example.net"})
	preOwned := domain.OrderRequest{Strategy: domain.StrategyPreOwnedDomain}

	note, err := c.Configure(context.Background(), preOwned, "delegado.es")
	require.NoError(t, err)
	assert.Contains(t, note, "servidores de nombres")

	note, err = c.Configure(context.Background(), preOwned, "apuntado.es")
	require.NoError(t, err)
	assert.Contains(t, note, "ya apunta")

	note, err = c.Configure(context.Background(), preOwned, "pendiente.es")
	require.NoError(t, err)
	assert.Contains(t, note, "requiere apuntar")

	// Managed subdomains never hit DNS
	note, err = c.Configure(context.Background(), domain.OrderRequest{Strategy: domain.StrategyManagedSubdomain}, "misitio.example.net")
	require.NoError(t, err)
	assert.Contains(t, note, "activo")
	assert.Equal(t, []string{"delegado.es", "apuntado.es", "pendiente.es"}, looked)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
