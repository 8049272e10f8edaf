package application

import (
	"errors"

	"anytun/domain/prefix"
)

// ErrNoRoute is returned by RoutingTable.GetRoute when no prefix matches.
var ErrNoRoute = errors.New("routing: no route")

// RoutingTable resolves a destination address to a multiplex id by
// longest-prefix match, one patricia-style tree per address family plus a
// flat prefix→mux map used for rebuilds and sync serialization (spec §4.6).
type RoutingTable interface {
	// AddRoute inserts or updates the route for prefix, then rebuilds that
	// family's tree from the flat map.
	AddRoute(p prefix.NetworkPrefix, mux uint16)
	// DeleteRoute removes prefix from the flat map and rebuilds the tree.
	DeleteRoute(p prefix.NetworkPrefix)
	// GetRoute returns the mux of the deepest matching prefix for addr in
	// family, or ErrNoRoute.
	GetRoute(family prefix.Family, addr []byte) (mux uint16, err error)
	// Each calls fn for every (prefix, mux) pair currently installed, family
	// by family, in the flat map's sort order — used for sync snapshots.
	Each(fn func(p prefix.NetworkPrefix, mux uint16))
}
