// Package ssl checks whether TLS is already served for a domain.
// The check is best-effort: a negative result is never permanent.
package ssl

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of a probe.
type Result struct {
	HasSSL bool   `json:"has_ssl"`
	Detail string `json:"detail"`
}

// Prober issues one HEAD request over HTTPS.
type Prober struct {
	httpClient *http.Client
	scheme     string
	logger     *slog.Logger
}

// ProberConfig holds prober configuration.
type ProberConfig struct {
	Timeout time.Duration
	// RootCAs overrides the system pool, used with test servers.
	RootCAs *x509.CertPool
}

// NewProber creates a new SSL prober.
func NewProber(cfg ProberConfig, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > DefaultTimeout {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: cfg.RootCAs, MinVersion: tls.VersionTLS12}
	transport.DisableKeepAlives = true

	return &Prober{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		scheme: "https",
		logger: logger.With("component", "ssl_prober"),
	}
}

// Probe reports whether https://<domain>/ completes a TLS handshake.
// Any HTTP response, whatever its status, counts as success.
func (p *Prober) Probe(ctx context.Context, domain string) Result {
	target := (&url.URL{Scheme: p.scheme, Host: domain, Path: "/"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Result{HasSSL: false, Detail: fmt.Sprintf("connection failed: %v", err)}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		result := classify(err)
		p.logger.Debug("ssl probe failed", "domain", domain, "detail", result.Detail)
		return result
	}
	resp.Body.Close()

	p.logger.Debug("ssl probe succeeded", "domain", domain, "status", resp.StatusCode)
	return Result{HasSSL: true, Detail: fmt.Sprintf("HTTPS responded with status %d", resp.StatusCode)}
}

func classify(err error) Result {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Result{HasSSL: false, Detail: "timeout"}
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &verifyErr):
		return Result{HasSSL: false, Detail: "certificate invalid: " + verifyErr.Err.Error()}
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return Result{HasSSL: false, Detail: "certificate invalid: " + unwrapURL(err).Error()}
	case errors.As(err, &recordErr):
		return Result{HasSSL: false, Detail: "certificate invalid: server does not speak TLS"}
	}
	return Result{HasSSL: false, Detail: "connection failed: " + unwrapURL(err).Error()}
}

func unwrapURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
