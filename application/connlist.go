package application

import (
	"errors"
	"net/netip"
)

// ErrNotFound is returned by ConnectionList.Get when mux has no entry.
var ErrNotFound = errors.New("connection: not found")

// ConnectionParam is the per-mux state the packet pipeline needs: the key
// schedule, the replay window, the next outbound sequence number, and the
// peer's current UDP endpoint (spec §3).
type ConnectionParam struct {
	KD             KeyDerivation
	SeqWindow      SeqWindow
	SeqWindowSize  uint32
	NextSeqNr      uint32
	RemoteEndpoint netip.AddrPort
	// RoamCount counts how many times the auto-detect peer-roaming path
	// (spec §9) has rewritten RemoteEndpoint for this connection.
	RoamCount uint64
}

// HasRemote reports whether RemoteEndpoint has been set to a non-zero value.
// The zero endpoint is the sync-protocol "not set" sentinel (spec §4.8).
func (c ConnectionParam) HasRemote() bool {
	return c.RemoteEndpoint.IsValid() && c.RemoteEndpoint.Port() != 0
}

// ToSyncRecord builds the wire record a sync peer expects for mux's current
// state (spec §4.8). The zero endpoint sentinel is preserved as-is; callers
// that roam a connection pass the already-updated RemoteEndpoint.
func (c ConnectionParam) ToSyncRecord(mux uint16) SyncConnectionRecord {
	rec := SyncConnectionRecord{
		Mux:        mux,
		KeyLength:  c.KD.KeyLength(),
		MasterSalt: c.KD.MasterSalt(),
		MasterKey:  c.KD.MasterKey(),
		Role:       c.KD.Role(),
		WindowSize: c.SeqWindowSize,
		NextSeqNr:  c.NextSeqNr,
	}
	if c.HasRemote() {
		rec.RemoteAddress = c.RemoteEndpoint.Addr().String()
		rec.RemotePort = c.RemoteEndpoint.Port()
	}
	return rec
}

// ConnectionList maps a 16-bit multiplex id to its ConnectionParam.
// Implementations guard the map with a single reader-writer lock: packet
// lookups take read locks, sync/auto-registration/roaming take the write
// lock (spec §4.5).
type ConnectionList interface {
	// Get returns the ConnectionParam for mux, or ErrNotFound.
	Get(mux uint16) (ConnectionParam, error)
	// Add inserts or overwrites the ConnectionParam for mux.
	Add(mux uint16, param ConnectionParam)
	// GetOrNewUnlocked returns a copy of the existing entry for mux, or
	// inserts and returns a freshly zero-valued one. Used by sync
	// deserialization, which sets fields on the returned copy and stores it
	// back with Update.
	GetOrNewUnlocked(mux uint16) ConnectionParam
	// Update replaces the stored ConnectionParam for mux under the write lock.
	Update(mux uint16, param ConnectionParam)
	// Len returns the number of connections.
	Len() int
	// First returns an arbitrary entry's mux, used when routing is disabled
	// and a single connection backs the whole tunnel. ok is false when the
	// list is empty.
	First() (mux uint16, ok bool)
	// Each calls fn for every (mux, param) pair. fn must not mutate the list.
	Each(fn func(mux uint16, param ConnectionParam))
}
