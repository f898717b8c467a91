// Package ftp uploads the welcome page into a new account's web root.
package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	goftp "github.com/jlaffaye/ftp"

	"github.com/artpar/hostprov/internal/core/domain"
	"github.com/artpar/hostprov/internal/core/welcome"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrConnect   = errors.New("ftp connection failed")
	ErrAuth      = errors.New("ftp authentication failed")
	ErrChangeDir = errors.New("ftp change directory failed")
	ErrWrite     = errors.New("ftp upload failed")
	ErrTimeout   = errors.New("ftp timeout")
)

const (
	DefaultPort    = 21
	DefaultTimeout = 30 * time.Second
	WebRoot        = "public_html"
)

// =============================================================================
// Connection Abstraction
// =============================================================================

// Conn is the subset of *goftp.ServerConn the deployer uses.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// DialFunc opens an FTP control connection.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// DialFTP dials a real FTP server with jlaffaye/ftp.
func DialFTP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	conn, err := goftp.Dial(addr, goftp.DialWithContext(ctx), goftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// =============================================================================
// Deployer
// =============================================================================

// Config holds deployer configuration.
type Config struct {
	// Host is the FTP server. When empty the account's domain is used.
	Host            string
	Port            int
	Timeout         time.Duration
	ControlPanelURL string
}

// Result is the outcome of a deployment. Err is one of the sentinel errors
// above, wrapped with the server's reply.
type Result struct {
	Success bool
	SiteURL string
	Err     error
}

// Deployer renders the welcome page and uploads it as index.html.
type Deployer struct {
	cfg    Config
	dial   DialFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewDeployer creates a deployer. A nil dial uses DialFTP.
func NewDeployer(cfg Config, dial DialFunc, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = DialFTP
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Deployer{
		cfg:    cfg,
		dial:   dial,
		now:    time.Now,
		logger: logger.With("component", "ftp_deployer"),
	}
}

// Deploy uploads the rendered page using the account's own credentials.
// Failures are returned in Result, never as a panic or a fatal error.
func (d *Deployer) Deploy(ctx context.Context, account domain.AccountCredentials, planName string, sslActive bool) Result {
	page := welcome.Render(welcome.Page{
		Domain:          account.Domain,
		Username:        account.Username,
		PlanName:        planName,
		ControlPanelURL: d.cfg.ControlPanelURL,
		ActivatedAt:     d.now(),
		SSLActive:       sslActive,
	})
	siteURL := welcome.SiteURL(account.Domain, sslActive)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.upload(ctx, account, page) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("%w after %s", ErrTimeout, d.cfg.Timeout)
	}

	if err != nil {
		d.logger.Warn("welcome page deployment failed", "domain", account.Domain, "error", err)
		return Result{Success: false, SiteURL: siteURL, Err: err}
	}
	d.logger.Info("welcome page deployed", "domain", account.Domain, "site_url", siteURL)
	return Result{Success: true, SiteURL: siteURL}
}

func (d *Deployer) upload(ctx context.Context, account domain.AccountCredentials, page string) error {
	host := d.cfg.Host
	if host == "" {
		host = account.Domain
	}
	addr := net.JoinHostPort(host, strconv.Itoa(d.cfg.Port))

	conn, err := d.dial(ctx, addr, d.cfg.Timeout)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: connect %s", ErrTimeout, addr)
		}
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	defer conn.Quit()

	if err := conn.Login(account.Username, account.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if err := conn.ChangeDir(WebRoot); err != nil {
		return fmt.Errorf("%w: %v", ErrChangeDir, err)
	}
	if err := conn.Stor(welcome.IndexFile, strings.NewReader(page)); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: upload", ErrTimeout)
		}
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// Reason maps a deployment error to a customer-facing Spanish message.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "tiempo de espera agotado"
	case errors.Is(err, ErrConnect):
		return "no se pudo conectar al servidor FTP"
	case errors.Is(err, ErrAuth):
		return "autenticación FTP rechazada"
	case errors.Is(err, ErrChangeDir):
		return "no se encontró el directorio " + WebRoot
	case errors.Is(err, ErrWrite):
		return "no se pudo escribir " + welcome.IndexFile
	default:
		return err.Error()
	}
}
