package provisioning

import (
	"context"

	"github.com/artpar/hostprov/internal/core/dns"
	"github.com/artpar/hostprov/internal/core/domain"
)

// AdvisoryDomainConfigurator is the ConfigureDomain step for the current
// strategies. The control panel creates the DNS zone with the account, so
// nothing remains to do remotely; the step only reports what the customer
// still needs.
type AdvisoryDomainConfigurator struct{}

// Configure implements DomainConfigurator.
func (AdvisoryDomainConfigurator) Configure(_ context.Context, order domain.OrderRequest, resolvedDomain string) (string, error) {
	switch order.Strategy {
	case domain.StrategyManagedSubdomain:
		return "Subdominio " + resolvedDomain + " activo", nil
	case domain.StrategyPreOwnedDomain:
		return "El dominio " + resolvedDomain + " requiere apuntar sus DNS a nuestros servidores", nil
	case domain.StrategyRegisterNew:
		return "Registro de " + resolvedDomain + " pendiente de confirmación", nil
	default:
		return "", domain.ErrInvalidDomainStrategy
	}
}

// DNSLookupFunc matches dns.Resolver.Resolve.
type DNSLookupFunc func(ctx context.Context, hostname string) dns.VerificationInput

// DNSDomainConfigurator checks whether a pre-owned domain already points at
// the hosting server and says so in the step note. Other strategies fall
// back to AdvisoryDomainConfigurator.
type DNSDomainConfigurator struct {
	lookup      DNSLookupFunc
	serverIP    string
	nameservers []string
}

// NewDNSDomainConfigurator creates a configurator around a DNS lookup.
func NewDNSDomainConfigurator(lookup DNSLookupFunc, serverIP string, nameservers []string) *DNSDomainConfigurator {
	return &DNSDomainConfigurator{
		lookup:      lookup,
		serverIP:    serverIP,
		nameservers: append([]string(nil), nameservers...),
	}
}

// Configure implements DomainConfigurator.
func (c *DNSDomainConfigurator) Configure(ctx context.Context, order domain.OrderRequest, resolvedDomain string) (string, error) {
	if order.Strategy != domain.StrategyPreOwnedDomain {
		return AdvisoryDomainConfigurator{}.Configure(ctx, order, resolvedDomain)
	}

	res := dns.Verify(c.lookup(ctx, resolvedDomain), c.serverIP, c.nameservers)
	if !res.Verified {
		return AdvisoryDomainConfigurator{}.Configure(ctx, order, resolvedDomain)
	}
	switch res.Method {
	case dns.MethodNS:
		return "El dominio " + resolvedDomain + " ya usa nuestros servidores de nombres", nil
	default:
		return "El dominio " + resolvedDomain + " ya apunta a nuestro servidor", nil
	}
}
