package resolve

import (
	"context"
	"errors"
	"net"
	"testing"

	"anytun/application"
)

func withFakeLookup(t *testing.T, addrs []net.IPAddr, err error) {
	t.Helper()
	orig := lookupIPAddr
	lookupIPAddr = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return addrs, err
	}
	t.Cleanup(func() { lookupIPAddr = orig })
}

func TestResolve_LiteralIPv4(t *testing.T) {
	r := New()
	got, err := r.ResolveUDP(context.Background(), "192.0.2.1", 4242, application.AddressFamilyAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].String() != "192.0.2.1:4242" {
		t.Fatalf("got %v", got)
	}
}

func TestResolve_LiteralIPFamilyMismatch(t *testing.T) {
	r := New()
	if _, err := r.ResolveTCP(context.Background(), "192.0.2.1", 4242, application.AddressFamilyIPv6Only); err == nil {
		t.Fatal("expected error for IPv4 literal under IPv6-only filter")
	}
}

func TestResolve_DomainFiltersFamily(t *testing.T) {
	withFakeLookup(t, []net.IPAddr{
		{IP: net.ParseIP("198.51.100.5")},
		{IP: net.ParseIP("2001:db8::1")},
	}, nil)

	r := New()
	got, err := r.ResolveUDP(context.Background(), "example.anytun", 2323, application.AddressFamilyIPv6Only)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Addr().Is6() {
		t.Fatalf("got %v, want exactly one IPv6 address", got)
	}
}

func TestResolve_DomainAnyFamilyReturnsAll(t *testing.T) {
	withFakeLookup(t, []net.IPAddr{
		{IP: net.ParseIP("198.51.100.5")},
		{IP: net.ParseIP("2001:db8::1")},
	}, nil)

	r := New()
	got, err := r.ResolveUDP(context.Background(), "example.anytun", 2323, application.AddressFamilyAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d addresses, want 2", len(got))
	}
}

func TestResolve_DomainLookupError(t *testing.T) {
	withFakeLookup(t, nil, errors.New("no such host"))

	r := New()
	if _, err := r.ResolveUDP(context.Background(), "example.anytun", 2323, application.AddressFamilyAny); err == nil {
		t.Fatal("expected lookup error to propagate")
	}
}

func TestResolve_NoMatchingFamily(t *testing.T) {
	withFakeLookup(t, []net.IPAddr{{IP: net.ParseIP("198.51.100.5")}}, nil)

	r := New()
	if _, err := r.ResolveUDP(context.Background(), "example.anytun", 2323, application.AddressFamilyIPv6Only); err == nil {
		t.Fatal("expected error when no address matches the requested family")
	}
}
