// Package dns contains pure functions for computing an account's public
// domain and the DNS records a customer-owned domain needs.
// This is part of the Functional Core - all functions are pure with no I/O.
package dns

import (
	"strings"
	"unicode"

	"github.com/artpar/hostprov/internal/core/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLabelLength is the DNS limit for a single label.
const MaxLabelLength = 63

// =============================================================================
// Domain Resolution
// =============================================================================

// Resolve computes the final public domain for an order.
//
//	managed-subdomain  -> <sanitized-label>.<platformSuffix>
//	pre-owned-domain   -> supplied domain
//	register-new       -> supplied domain
//
// Only an unrecognized strategy fails; order validation normally rules it out.
func Resolve(order domain.OrderRequest, platformSuffix string) (string, error) {
	switch order.Strategy {
	case domain.StrategyManagedSubdomain:
		suffix := strings.Trim(strings.ToLower(platformSuffix), ".")
		return SanitizeLabel(order.Subdomain) + "." + suffix, nil
	case domain.StrategyPreOwnedDomain:
		return normalizeHostname(order.CustomDomain), nil
	case domain.StrategyRegisterNew:
		return normalizeHostname(order.NewDomain), nil
	default:
		return "", domain.ErrInvalidDomainStrategy
	}
}

// SanitizeLabel folds a customer-typed label into a DNS label made of
// lowercase letters and digits only.
//
// Example:
//
//	SanitizeLabel("MiSitio!")    // returns "misitio"
//	SanitizeLabel("Panadería 2") // returns "panaderia2"
func SanitizeLabel(label string) string {
	folded, _, err := transform.String(diacriticFolder(), label)
	if err != nil {
		folded = label
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == MaxLabelLength {
			break
		}
	}
	return b.String()
}

// diacriticFolder decomposes runes and drops combining marks, so "í" becomes "i".
// A transformer holds state, so a fresh chain is built per call.
func diacriticFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func normalizeHostname(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}

// =============================================================================
// DNS Instructions
// =============================================================================

// DNSInstruction represents a DNS record the customer needs to create.
type DNSInstruction struct {
	Type     string `json:"type"`     // "NS" or "A"
	Name     string `json:"name"`     // The hostname to set
	Value    string `json:"value"`    // Nameserver or server IP
	Priority string `json:"priority"` // "recommended" or "alternative"
}

// GenerateInstructions returns the records a pre-owned domain needs to point
// at the hosting server. Nameserver delegation is recommended; A records for
// the apex and www are the alternative when the registrar keeps DNS.
func GenerateInstructions(customDomain, serverIP string, nameservers []string) []DNSInstruction {
	var instructions []DNSInstruction
	for _, ns := range nameservers {
		instructions = append(instructions, DNSInstruction{
			Type:     "NS",
			Name:     customDomain,
			Value:    ns,
			Priority: "recommended",
		})
	}

	if serverIP != "" {
		instructions = append(instructions,
			DNSInstruction{Type: "A", Name: customDomain, Value: serverIP, Priority: "alternative"},
			DNSInstruction{Type: "A", Name: "www." + customDomain, Value: serverIP, Priority: "alternative"},
		)
	}

	return instructions
}
