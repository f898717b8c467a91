// Package welcome renders the landing page placed in a new account's web root.
// This is part of the Functional Core - rendering is pure substitution.
package welcome

import (
	_ "embed"
	"fmt"
	"html"
	"strings"
	"time"
)

//go:embed template.html
var pageTemplate string

// IndexFile is the name the rendered page is uploaded as.
const IndexFile = "index.html"

// SSL badge values.
const (
	SSLStatusActive  = "active"
	SSLStatusPending = "pending"

	sslColorActive  = "#16a34a"
	sslColorPending = "#f59e0b"
)

// Page holds the values substituted into the template.
type Page struct {
	Domain          string
	Username        string
	PlanName        string
	ControlPanelURL string
	ActivatedAt     time.Time
	SSLActive       bool
}

// SiteURL returns the public URL, https only when SSL is already active.
func SiteURL(domain string, sslActive bool) string {
	if sslActive {
		return "https://" + domain
	}
	return "http://" + domain
}

// Render substitutes the fixed placeholders. It cannot fail.
func Render(p Page) string {
	status, label, color := SSLStatusPending, "Pendiente", sslColorPending
	if p.SSLActive {
		status, label, color = SSLStatusActive, "Activo", sslColorActive
	}

	r := strings.NewReplacer(
		"{{DOMAIN}}", html.EscapeString(p.Domain),
		"{{USERNAME}}", html.EscapeString(p.Username),
		"{{PLAN_NAME}}", html.EscapeString(p.PlanName),
		"{{CPANEL_URL}}", html.EscapeString(p.ControlPanelURL),
		"{{DATE}}", FormatDate(p.ActivatedAt),
		"{{SSL_STATUS}}", status,
		"{{SSL_LABEL}}", label,
		"{{SSL_COLOR}}", color,
		"{{SITE_URL}}", html.EscapeString(SiteURL(p.Domain, p.SSLActive)),
	)
	return r.Replace(pageTemplate)
}

var monthsES = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate formats t as a Spanish long date, e.g. "16 de octubre de 2026".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthsES[t.Month()-1], t.Year())
}
