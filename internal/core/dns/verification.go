package dns

import (
	"net"
	"strings"
)

// =============================================================================
// Verification
// =============================================================================

// Verification methods.
const (
	MethodNS = "ns"
	MethodA  = "a"
)

// VerificationInput contains DNS lookup results passed from the shell layer.
type VerificationInput struct {
	Hostname    string
	NSRecords   []string
	ARecords    []net.IP
	LookupError string
}

// VerificationResult is the pure output of verification logic.
type VerificationResult struct {
	Verified bool
	Method   string
	Error    string
}

// Verify reports whether a domain already points at the hosting server,
// by delegation to one of our nameservers or by an A record on the server IP.
func Verify(input VerificationInput, serverIP string, nameservers []string) VerificationResult {
	if input.LookupError != "" {
		return VerificationResult{
			Verified: false,
			Error:    "DNS lookup failed: " + input.LookupError,
		}
	}

	// Delegation first (recommended method)
	for _, ns := range input.NSRecords {
		ns = strings.TrimSuffix(ns, ".")
		for _, want := range nameservers {
			if strings.EqualFold(ns, strings.TrimSuffix(want, ".")) {
				return VerificationResult{Verified: true, Method: MethodNS}
			}
		}
	}

	if serverIP != "" {
		for _, ip := range input.ARecords {
			if ip.String() == serverIP {
				return VerificationResult{Verified: true, Method: MethodA}
			}
		}
	}

	return VerificationResult{
		Verified: false,
		Error:    "DNS records do not point to the hosting server",
	}
}
