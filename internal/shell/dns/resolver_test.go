package dns

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubLookuper struct {
	ns    []*net.NS
	ips   []net.IPAddr
	nsErr error
	ipErr error
}

func (s stubLookuper) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	return s.ns, s.nsErr
}

func (s stubLookuper) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return s.ips, s.ipErr
}

func TestResolve_CollectsRecords(t *testing.T) {
	r := NewResolver(stubLookuper{
		ns:  []*net.NS{{Host: "ns1.example.net."}},
		ips: []net.IPAddr{{IP: net.ParseIP("203.0.113.10")}},
	})

	in := r.Resolve(context.Background(), "cliente.es")

	assert.Equal(t, "cliente.es", in.Hostname)
	assert.Equal(t, []string{"ns1.example.net."}, in.NSRecords)
	assert.Len(t, in.ARecords, 1)
	assert.Empty(t, in.LookupError)
}

func TestResolve_PartialFailure(t *testing.T) {
	r := NewResolver(stubLookuper{
		nsErr: errors.New("no such host"),
		ips:   []net.IPAddr{{IP: net.ParseIP("203.0.113.10")}},
	})

	in := r.Resolve(context.Background(), "cliente.es")

	assert.Empty(t, in.NSRecords)
	assert.Len(t, in.ARecords, 1)
	assert.Empty(t, in.LookupError)
}

func TestResolve_AllLookupsFail(t *testing.T) {
	r := NewResolver(stubLookuper{
		nsErr: errors.New("no such host"),
		ipErr: errors.New("no such host"),
	})

	in := r.Resolve(context.Background(), "cliente.es")

	assert.Equal(t, "no DNS records found for cliente.es", in.LookupError)
}
