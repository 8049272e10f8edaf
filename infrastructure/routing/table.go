// Package routing implements the longest-prefix-match RoutingTable: one
// patricia-style tree per address family plus a flat prefix→mux map that
// the tree is rebuilt from on every change (spec §4.6).
package routing

import (
	"sort"
	"sync"

	"anytun/application"
	"anytun/domain/prefix"
)

type routeEntry struct {
	prefix prefix.NetworkPrefix
	mux    uint16
}

// Table is a concurrency-safe application.RoutingTable. Writers (AddRoute,
// DeleteRoute) are rare: sync fan-in and the occasional CLI route change.
// Readers (GetRoute) run on every outbound packet.
type Table struct {
	mu    sync.RWMutex
	flat  map[string]routeEntry
	trees map[prefix.Family]*node
}

// NewTable builds an empty routing table.
func NewTable() *Table {
	return &Table{
		flat:  make(map[string]routeEntry),
		trees: make(map[prefix.Family]*node),
	}
}

func (t *Table) AddRoute(p prefix.NetworkPrefix, mux uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flat[p.Key()] = routeEntry{prefix: p, mux: mux}
	t.rebuild(p.Family)
}

func (t *Table) DeleteRoute(p prefix.NetworkPrefix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flat, p.Key())
	t.rebuild(p.Family)
}

func (t *Table) GetRoute(family prefix.Family, addr []byte) (uint16, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	root, ok := t.trees[family]
	if !ok {
		return 0, application.ErrNoRoute
	}
	mux, found := lookup(root, addr)
	if !found {
		return 0, application.ErrNoRoute
	}
	return mux, nil
}

func (t *Table) Each(fn func(p prefix.NetworkPrefix, mux uint16)) {
	t.mu.RLock()
	entries := make([]routeEntry, 0, len(t.flat))
	for _, e := range t.flat {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return prefix.Less(entries[i].prefix, entries[j].prefix)
	})
	for _, e := range entries {
		fn(e.prefix, e.mux)
	}
}

// rebuild reconstructs family's tree from scratch by walking every entry
// of that family in the flat map, in prefix.Less order. Caller holds t.mu.
func (t *Table) rebuild(family prefix.Family) {
	var entries []routeEntry
	for _, e := range t.flat {
		if e.prefix.Family == family {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return prefix.Less(entries[i].prefix, entries[j].prefix)
	})

	root := &node{}
	for _, e := range entries {
		insert(root, e.prefix.Addr, e.prefix.Length, e.mux)
	}
	t.trees[family] = root
}
