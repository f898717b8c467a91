package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/artpar/hostprov/internal/core/catalog"
	"github.com/artpar/hostprov/internal/core/credentials"
	"github.com/artpar/hostprov/internal/core/crypto"
	"github.com/artpar/hostprov/internal/shell/checkout"
	dnsshell "github.com/artpar/hostprov/internal/shell/dns"
	"github.com/artpar/hostprov/internal/shell/ftp"
	"github.com/artpar/hostprov/internal/shell/notify"
	"github.com/artpar/hostprov/internal/shell/provisioning"
	"github.com/artpar/hostprov/internal/shell/ssl"
	"github.com/artpar/hostprov/internal/shell/store"
	"github.com/artpar/hostprov/internal/shell/whm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// =============================================================================
// Application Wiring
// =============================================================================

// App holds the constructed components shared by every command.
type App struct {
	config       *Config
	store        *store.SQLiteStore
	orchestrator *provisioning.Orchestrator
	checkout     *checkout.Service
	prober       *ssl.Prober
	registry     *prometheus.Registry
	logger       *slog.Logger
}

// NewApp builds the provisioning pipeline and its persistence.
// Errors are *ServerError carrying the exit code.
func NewApp(cfg *Config, logger *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	orch, prober, err := newOrchestrator(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Security.MasterSecret == "" {
		return nil, &ServerError{
			Op:       "NewApp",
			Err:      errors.New("security.master_secret is required to store credentials"),
			ExitCode: ExitConfigError,
		}
	}
	key, err := crypto.DeriveKey(cfg.Security.MasterSecret, cfg.Security.Salt)
	if err != nil {
		return nil, &ServerError{Op: "NewApp", Err: err, ExitCode: ExitConfigError}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewApp", Err: err, ExitCode: ExitDatabaseError}
	}

	return &App{
		config:       cfg,
		store:        s,
		orchestrator: orch,
		checkout:     checkout.NewService(s, orch, key, logger),
		prober:       prober,
		registry:     reg,
		logger:       logger,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.store.Close()
}

// newOrchestrator builds the pipeline without persistence.
func newOrchestrator(cfg *Config, reg prometheus.Registerer, logger *slog.Logger) (*provisioning.Orchestrator, *ssl.Prober, error) {
	if cfg.Panel.URL == "" {
		return nil, nil, &ServerError{
			Op:       "newOrchestrator",
			Err:      errors.New("panel.url is required"),
			ExitCode: ExitConfigError,
		}
	}
	if cfg.Platform.Suffix == "" {
		return nil, nil, &ServerError{
			Op:       "newOrchestrator",
			Err:      errors.New("platform.suffix is required"),
			ExitCode: ExitConfigError,
		}
	}

	cat, err := loadCatalog(cfg.Platform.CatalogFile)
	if err != nil {
		return nil, nil, &ServerError{Op: "newOrchestrator", Err: err, ExitCode: ExitConfigError}
	}

	mailer, err := newSender(cfg.Email, logger)
	if err != nil {
		return nil, nil, &ServerError{Op: "newOrchestrator", Err: err, ExitCode: ExitConfigError}
	}

	var metrics *provisioning.Metrics
	if reg != nil {
		metrics, err = provisioning.NewMetrics(reg)
		if err != nil {
			return nil, nil, &ServerError{Op: "newOrchestrator", Err: err, ExitCode: ExitConfigError}
		}
	}

	panel := whm.NewClient(whm.Config{
		BaseURL:  cfg.Panel.URL,
		Username: cfg.Panel.Username,
		Token:    cfg.Panel.Token,
		Timeout:  cfg.Panel.Timeout,
		Insecure: cfg.Panel.Insecure,
	}, logger)

	prober := ssl.NewProber(ssl.ProberConfig{Timeout: cfg.SSL.ProbeTimeout}, logger)

	resolver := dnsshell.NewResolver(nil)

	deployer := ftp.NewDeployer(ftp.Config{
		Host:            cfg.FTP.Host,
		Port:            cfg.FTP.Port,
		Timeout:         cfg.FTP.Timeout,
		ControlPanelURL: cfg.ControlPanelURL(),
	}, nil, logger)

	orch := provisioning.NewOrchestrator(provisioning.Config{
		PlatformSuffix:  cfg.Platform.Suffix,
		ControlPanelURL: cfg.ControlPanelURL(),
		FTPHost:         cfg.FTP.Host,
		ServerIP:        cfg.Platform.ServerIP,
		Nameservers:     cfg.Platform.Nameservers,
		StepTimeout:     cfg.Platform.StepTimeout,
	}, provisioning.Deps{
		Panel:       panel,
		Credentials: credentials.NewGenerator(),
		Domains:     provisioning.NewDNSDomainConfigurator(resolver.Resolve, cfg.Platform.ServerIP, cfg.Platform.Nameservers),
		SSL:         ssl.NewAdvisoryManager(prober.Probe, logger),
		Deployer:    deployer,
		Mailer:      mailer,
		Catalog:     cat,
		Metrics:     metrics,
	}, logger)

	return orch, prober, nil
}

// loadCatalog reads a plan catalog file, or the embedded one when path is empty.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return catalog.Parse(data)
}

// newSender selects the notification backend.
func newSender(cfg EmailConfig, logger *slog.Logger) (notify.Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case notify.TransportSMTP:
		s, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:         cfg.SMTPHost,
			Port:         cfg.SMTPPort,
			Username:     cfg.SMTPUsername,
			Password:     cfg.SMTPPassword,
			TLSMode:      cfg.SMTPTLSMode,
			SenderEmail:  cfg.SenderEmail,
			SupportEmail: cfg.SupportEmail,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case notify.TransportPostmark:
		s, err := notify.NewPostmarkSender(notify.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			SenderEmail:  cfg.SenderEmail,
			SupportEmail: cfg.SupportEmail,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case notify.TransportMailbox, "":
		logger.Warn("using inspection mailbox, emails are not delivered", "dir", cfg.MailboxDir)
		return notify.NewMailboxSender(cfg.MailboxDir, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown email driver %q", notify.ErrInvalidConfig, cfg.Driver)
	}
}
