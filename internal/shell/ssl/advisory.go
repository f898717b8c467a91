package ssl

import (
	"context"
	"log/slog"
)

// Setup is the outcome of the SSL setup step.
type Setup struct {
	Success bool   `json:"success"`
	Active  bool   `json:"active"`
	Note    string `json:"note"`
}

// ProbeFunc matches Prober.Probe.
type ProbeFunc func(ctx context.Context, domain string) Result

// AdvisoryManager is the SSL setup step. It never issues certificates: the
// control panel's AutoSSL does that on its own schedule. It probes the
// current state and always reports success with a note.
type AdvisoryManager struct {
	probe  ProbeFunc
	logger *slog.Logger
}

// NewAdvisoryManager creates the advisory SSL step around a probe.
func NewAdvisoryManager(probe ProbeFunc, logger *slog.Logger) *AdvisoryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryManager{probe: probe, logger: logger.With("component", "ssl_setup")}
}

// Setup probes the domain and reports the advisory outcome.
func (m *AdvisoryManager) Setup(ctx context.Context, domain string) Setup {
	res := m.probe(ctx, domain)
	if res.HasSSL {
		return Setup{Success: true, Active: true, Note: "SSL activo"}
	}

	m.logger.Info("ssl not active yet", "domain", domain, "detail", res.Detail)
	return Setup{
		Success: true,
		Active:  false,
		Note:    "El certificado SSL se emitirá automáticamente (AutoSSL) en las próximas horas",
	}
}
