package notify

import (
	"testing"

	"github.com/artpar/hostprov/internal/core/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelcomeEmail(t *testing.T) {
	msg, err := WelcomeEmail(WelcomeData{
		To:              "ana@example.com",
		ClientName:      "Ana",
		PlanName:        "Plan Básico",
		Domain:          "misitio.hostprov.net",
		SiteURL:         "http://misitio.hostprov.net",
		ControlPanelURL: "https://panel.hostprov.net:2083",
		FTPHost:         "ftp.hostprov.net",
		Username:        "misitio",
		Password:        "Hp1234ab<CD",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, TagWelcome, msg.Tag)
	assert.Contains(t, msg.Subject, "misitio.hostprov.net")
	assert.Contains(t, msg.HTML, "Hp1234ab&lt;CD")
	assert.Contains(t, msg.Text, "Contraseña: Hp1234ab<CD")
	assert.Contains(t, msg.Text, "se emitirá automáticamente")
	assert.NotContains(t, msg.Text, "configuración DNS")
}

func TestWelcomeEmail_PendingDNS(t *testing.T) {
	msg, err := WelcomeEmail(WelcomeData{To: "a@b.co", Domain: "example.com", PendingDNS: true, SSLActive: true})
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "configuración DNS")
	assert.Contains(t, msg.HTML, "ya está activo")
}

func TestDomainConfigEmail(t *testing.T) {
	msg, err := DomainConfigEmail(DomainConfigData{
		To:           "ana@example.com",
		ClientName:   "Ana",
		Domain:       "example.com",
		Instructions: dns.GenerateInstructions("example.com", "203.0.113.10", []string{"ns1.hostprov.net"}),
	})
	require.NoError(t, err)

	assert.Equal(t, TagDomainConfig, msg.Tag)
	assert.Contains(t, msg.Subject, "example.com")
	assert.Contains(t, msg.Text, "- NS example.com -> ns1.hostprov.net (recomendada)")
	assert.Contains(t, msg.Text, "- A www.example.com -> 203.0.113.10 (alternativa)")
	assert.Contains(t, msg.HTML, "Recomendada")
}
