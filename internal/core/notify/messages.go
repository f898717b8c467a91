// Package notify builds the transactional emails sent after provisioning.
// This is part of the Functional Core - builders render templates, no I/O.
package notify

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/artpar/hostprov/internal/core/dns"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

// Message is the notification contract: recipient, subject and both bodies.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	Tag     string `json:"tag,omitempty"`
}

// Tags identify message kinds for analytics and the inspection mailbox.
const (
	TagWelcome      = "welcome"
	TagDomainConfig = "domain_config"
)

// WelcomeData feeds the welcome email.
type WelcomeData struct {
	To              string
	ClientName      string
	PlanName        string
	Domain          string
	SiteURL         string
	ControlPanelURL string
	FTPHost         string
	Username        string
	Password        string
	SSLActive       bool
	PendingDNS      bool
}

// WelcomeEmail renders the account-ready email.
func WelcomeEmail(d WelcomeData) (Message, error) {
	html, text, err := render("welcome", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      d.To,
		Subject: "Tu hosting " + d.Domain + " está listo",
		HTML:    html,
		Text:    text,
		Tag:     TagWelcome,
	}, nil
}

// DomainConfigData feeds the DNS instructions email for a pre-owned domain.
type DomainConfigData struct {
	To           string
	ClientName   string
	Domain       string
	Instructions []dns.DNSInstruction
}

// DomainConfigEmail renders the DNS configuration email.
func DomainConfigEmail(d DomainConfigData) (Message, error) {
	html, text, err := render("domain_config", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      d.To,
		Subject: "Configura el DNS de " + d.Domain,
		HTML:    html,
		Text:    text,
		Tag:     TagDomainConfig,
	}, nil
}

func render(name string, data any) (string, string, error) {
	var h, t bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&h, name+".html", data); err != nil {
		return "", "", err
	}
	if err := textTemplates.ExecuteTemplate(&t, name+".txt", data); err != nil {
		return "", "", err
	}
	return h.String(), strings.TrimSpace(t.String()) + "\n", nil
}
