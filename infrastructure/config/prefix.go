package config

import (
	"fmt"
	"net/netip"

	"anytun/domain/prefix"
)

// ParseCIDR parses an "addr/length" string into a prefix.NetworkPrefix,
// choosing FamilyIPv4 or FamilyIPv6 from the address.
func ParseCIDR(s string) (prefix.NetworkPrefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return prefix.NetworkPrefix{}, fmt.Errorf("config: invalid prefix %q: %w", s, err)
	}
	addr := p.Addr()
	family := prefix.FamilyIPv6
	if addr.Is4() || addr.Is4In6() {
		family = prefix.FamilyIPv4
		addr = addr.Unmap()
	}
	return prefix.New(family, addr.AsSlice(), p.Bits())
}
