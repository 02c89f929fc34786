// Package urlcheck validates submitted media URLs before a job record is
// created. A rejected URL never reaches the record store or the queue.
package urlcheck

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// Gate decides whether a submitted URL may enter the pipeline
type Gate interface {
	Validate(ctx context.Context, rawURL string) error
}

// Resolver is the subset of net.Resolver used by the gate, abstracted
// for tests
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolverGate rejects URLs whose host resolves to loopback, private, or
// link-local addresses, plus anything that is not plain http(s). DNS
// resolution happens here, once, so a hostname pointing at an internal
// address is caught before any download tooling touches it.
type ResolverGate struct {
	resolver Resolver
}

// New creates a ResolverGate using the default system resolver
func New() *ResolverGate {
	return &ResolverGate{resolver: net.DefaultResolver}
}

// NewWithResolver creates a ResolverGate with a custom resolver
func NewWithResolver(r Resolver) *ResolverGate {
	return &ResolverGate{resolver: r}
}

// Validate implements Gate
func (g *ResolverGate) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("could not resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("host %q resolved to no addresses", host)
	}

	// Every resolved address must be public. One internal A record is
	// enough to reject: the downloader has no control over which one
	// the OS picks later.
	for _, addr := range addrs {
		if err := checkIP(addr.IP); err != nil {
			return err
		}
	}

	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("URL resolves to a loopback address")
	case ip.IsPrivate():
		return fmt.Errorf("URL resolves to a private address")
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("URL resolves to a link-local address")
	case ip.IsUnspecified():
		return fmt.Errorf("URL resolves to an unspecified address")
	}
	return nil
}
