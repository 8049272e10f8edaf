// Package resolve implements application.Resolver over Go's asynchronous
// net.Resolver, honoring SATP's address-family filtering (spec §4.9).
package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"anytun/application"
)

// lookupIPAddr is swapped out in tests to avoid real DNS traffic.
var lookupIPAddr = net.DefaultResolver.LookupIPAddr

// Resolver is the stdlib-backed application.Resolver.
type Resolver struct{}

// New builds a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// ResolveUDP implements application.Resolver. SATP resolves UDP and TCP
// endpoints identically: both ultimately want candidate IPs for a given
// host, filtered by family.
func (r *Resolver) ResolveUDP(ctx context.Context, host string, port uint16, family application.AddressFamily) ([]netip.AddrPort, error) {
	return resolve(ctx, host, port, family)
}

// ResolveTCP implements application.Resolver.
func (r *Resolver) ResolveTCP(ctx context.Context, host string, port uint16, family application.AddressFamily) ([]netip.AddrPort, error) {
	return resolve(ctx, host, port, family)
}

func resolve(ctx context.Context, host string, port uint16, family application.AddressFamily) ([]netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		ip = ip.Unmap()
		if !familyMatches(ip, family) {
			return nil, fmt.Errorf("resolve: %s does not match requested %s address family", host, family)
		}
		return []netip.AddrPort{netip.AddrPortFrom(ip, port)}, nil
	}

	addrs, err := lookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve: lookup %q: %w", host, err)
	}

	var out []netip.AddrPort
	for _, a := range addrs {
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if !familyMatches(ip, family) {
			continue
		}
		out = append(out, netip.AddrPortFrom(ip, port))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resolve: no %s address found for %q", family, host)
	}
	return out, nil
}

func familyMatches(ip netip.Addr, family application.AddressFamily) bool {
	switch family {
	case application.AddressFamilyIPv4Only:
		return ip.Is4()
	case application.AddressFamilyIPv6Only:
		return !ip.Is4()
	default:
		return true
	}
}
