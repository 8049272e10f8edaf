package application

import (
	"context"
	"net/netip"
)

// AddressFamily filters resolver candidates (spec §4.9).
type AddressFamily uint8

const (
	AddressFamilyAny AddressFamily = iota
	AddressFamilyIPv4Only
	AddressFamilyIPv6Only
)

func (f AddressFamily) String() string {
	switch f {
	case AddressFamilyIPv4Only:
		return "ipv4"
	case AddressFamilyIPv6Only:
		return "ipv6"
	default:
		return "any"
	}
}

// Resolver performs asynchronous name resolution for UDP and TCP endpoints,
// honoring address-family filtering. Errors are returned to the caller; for
// startup resolution the caller is responsible for injecting failures into
// the signal controller (spec §4.9).
type Resolver interface {
	ResolveUDP(ctx context.Context, host string, port uint16, family AddressFamily) ([]netip.AddrPort, error)
	ResolveTCP(ctx context.Context, host string, port uint16, family AddressFamily) ([]netip.AddrPort, error)
}
