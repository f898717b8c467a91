// Package dns provides DNS resolution for domain verification.
// This is part of the Imperative Shell - handles I/O (DNS lookups).
package dns

import (
	"context"
	"net"

	coredns "github.com/artpar/hostprov/internal/core/dns"
)

// Lookuper is the subset of net.Resolver used here.
type Lookuper interface {
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Resolver performs DNS lookups for domain verification.
type Resolver struct {
	resolver Lookuper
}

// NewResolver creates a new DNS resolver. A nil lookuper uses net.DefaultResolver.
func NewResolver(l Lookuper) *Resolver {
	if l == nil {
		l = net.DefaultResolver
	}
	return &Resolver{
		resolver: l,
	}
}

// Resolve performs DNS lookups for the given hostname and returns a VerificationInput
// that can be passed to the pure verification function.
func (r *Resolver) Resolve(ctx context.Context, hostname string) coredns.VerificationInput {
	input := coredns.VerificationInput{
		Hostname: hostname,
	}

	// Look up NS records
	nss, err := r.resolver.LookupNS(ctx, hostname)
	if err == nil {
		for _, ns := range nss {
			input.NSRecords = append(input.NSRecords, ns.Host)
		}
	}

	// Look up A records
	ips, err := r.resolver.LookupIPAddr(ctx, hostname)
	if err == nil {
		for _, ip := range ips {
			input.ARecords = append(input.ARecords, ip.IP)
		}
	}

	// If both lookups failed, record the error
	if len(input.NSRecords) == 0 && len(input.ARecords) == 0 {
		input.LookupError = "no DNS records found for " + hostname
	}

	return input
}
