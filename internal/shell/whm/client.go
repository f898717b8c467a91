// Package whm provides a client for the control panel's JSON API.
// Every call returns a normalized whm.Response; errors never escape as Go errors.
package whm

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	corewhm "github.com/artpar/hostprov/internal/core/whm"
)

// DefaultTimeout bounds every control panel request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client provides methods for interacting with the control panel API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds control panel client configuration.
type Config struct {
	BaseURL  string // e.g. "https://panel.example.net:2087"
	Username string
	Token    string // password or API token, sent with basic auth
	Timeout  time.Duration
	Insecure bool // skip TLS verification for self-signed panel certificates
}

// NewClient creates a new control panel client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed panels
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		token:    cfg.Token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With("component", "whm_client"),
	}
}

// =============================================================================
// Operations
// =============================================================================

// CreateAccount creates a hosting account.
func (c *Client) CreateAccount(ctx context.Context, spec corewhm.AccountSpec) corewhm.Response {
	resp := c.call(ctx, corewhm.EndpointCreateAccount, spec.Params())
	if resp.Success {
		c.logger.Info("account created", "username", spec.Username, "domain", spec.Domain, "package", spec.Package)
	} else {
		c.logger.Warn("account creation failed",
			"username", spec.Username,
			"domain", spec.Domain,
			"failure", resp.Failure,
			"reason", resp.Reason,
		)
	}
	return resp
}

// ListPackages lists the hosting packages known to the panel.
func (c *Client) ListPackages(ctx context.Context) corewhm.Response {
	return c.call(ctx, corewhm.EndpointListPackages, nil)
}

// TestConnectivity checks credentials and reachability with a read-only call.
func (c *Client) TestConnectivity(ctx context.Context) (bool, string) {
	resp := c.ListPackages(ctx)
	if !resp.Success {
		return false, fmt.Sprintf("%s: %s", resp.Failure, resp.Reason)
	}
	return true, fmt.Sprintf("connected, %d packages available", len(corewhm.PackageNames(resp)))
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) call(ctx context.Context, endpoint string, params url.Values) corewhm.Response {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api.version", "1")

	reqURL := c.baseURL + "/json-api/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return corewhm.Failed(corewhm.FailureTransport, fmt.Sprintf("create request: %v", err))
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		failed := classifyTransportError(err)
		c.logger.Warn("control panel request failed",
			"endpoint", endpoint,
			"failure", failed.Failure,
			"error", redactURL(err, c.baseURL),
		)
		return failed
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("control panel returned HTTP error",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
		return corewhm.Failed(corewhm.FailureHTTP, fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	normalized := corewhm.Normalize(body)
	if normalized.Failure == corewhm.FailureProtocol {
		// The raw body may echo request parameters; log its prefix only.
		c.logger.Error("unrecognized control panel response",
			"endpoint", endpoint,
			"shape", normalized.Shape,
			"detail", normalized.Reason,
			"body_prefix", prefix(body, 200),
		)
	}
	c.logger.Debug("control panel call",
		"endpoint", endpoint,
		"success", normalized.Success,
		"shape", normalized.Shape,
		"duration", time.Since(start),
	)
	return normalized
}

func classifyTransportError(err error) corewhm.Response {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return corewhm.Failed(corewhm.FailureTimeout, "timeout")
	}
	if errors.Is(err, context.Canceled) {
		return corewhm.Failed(corewhm.FailureTransport, "request canceled")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return corewhm.Failed(corewhm.FailureTransport, fmt.Sprintf("connection failed: %v", err))
}

// redactURL drops the query string, which carries the new account's password.
func redactURL(err error, base string) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("%s %s: %v", urlErr.Op, base, urlErr.Err)
	}
	return err.Error()
}

func prefix(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
