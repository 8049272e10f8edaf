package application

import "anytun/domain/prefix"

// SyncRecordKind identifies which variant a sync record payload carries
// (spec §4.8).
type SyncRecordKind uint8

const (
	SyncRecordConnection SyncRecordKind = iota
	SyncRecordRoute
)

// SyncConnectionRecord mirrors the wire fields of a "connection" sync
// record: role, key length, master salt/key, window size, next sequence
// number and remote endpoint. The zero-value RemoteAddress/RemotePort is the
// "not set" sentinel and must not overwrite an existing non-zero endpoint.
type SyncConnectionRecord struct {
	Mux           uint16
	Role          Role
	KeyLength     int
	MasterSalt    []byte
	MasterKey     []byte
	WindowSize    uint32
	NextSeqNr     uint32
	RemoteAddress string
	RemotePort    uint16
}

// SyncRouteRecord mirrors the wire fields of a "route" sync record.
type SyncRouteRecord struct {
	Prefix prefix.NetworkPrefix
	Mux    uint16
}

// SyncBroadcaster fans a locally-applied mutation out to every connected
// sync peer. The packet pipeline calls it after it has stored a roamed or
// auto-registered connection in the ConnectionList, once the list's lock
// has been released. Records applied from sync peers are not re-broadcast.
type SyncBroadcaster interface {
	BroadcastConnection(rec SyncConnectionRecord)
	BroadcastRoute(rec SyncRouteRecord)
}
