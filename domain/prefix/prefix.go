// Package prefix defines NetworkPrefix, the routing key shared by
// RoutingTable lookups, sync route records, and CLI route flags.
package prefix

import (
	"bytes"
	"fmt"
)

// Family identifies which RoutingTable tree a prefix belongs to.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
	FamilyEthernet
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyEthernet:
		return "ethernet"
	default:
		return "unknown"
	}
}

// maxBits per family, used to validate Length.
var maxBits = map[Family]int{
	FamilyIPv4:     32,
	FamilyIPv6:     128,
	FamilyEthernet: 48,
}

// NetworkPrefix is an address plus a prefix length in bits.
type NetworkPrefix struct {
	Family Family
	Addr   []byte // big-endian address bytes, length implied by Family
	Length int    // prefix length in bits
}

// New validates addr/length against family and returns a NetworkPrefix.
func New(family Family, addr []byte, length int) (NetworkPrefix, error) {
	max, ok := maxBits[family]
	if !ok {
		return NetworkPrefix{}, fmt.Errorf("prefix: unknown family %d", family)
	}
	if length < 0 || length > max {
		return NetworkPrefix{}, fmt.Errorf("prefix: length %d out of range for %s (max %d)", length, family, max)
	}
	if len(addr)*8 < max {
		return NetworkPrefix{}, fmt.Errorf("prefix: address too short for %s", family)
	}
	cp := make([]byte, len(addr))
	copy(cp, addr)
	return NetworkPrefix{Family: family, Addr: cp, Length: length}, nil
}

// Less orders prefixes first by family, then lexicographically by address
// bytes, with Length as the final tie-breaker. It defines the ordering of
// the flat prefix map used to rebuild a RoutingTable's tree deterministically.
func Less(a, b NetworkPrefix) bool {
	if a.Family != b.Family {
		return a.Family < b.Family
	}
	if c := bytes.Compare(a.Addr, b.Addr); c != 0 {
		return c < 0
	}
	return a.Length < b.Length
}

// Key returns a comparable map key for use in the flat prefix map.
func (p NetworkPrefix) Key() string {
	return fmt.Sprintf("%d/%x/%d", p.Family, p.Addr, p.Length)
}
