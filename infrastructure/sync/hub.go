package sync

import (
	"fmt"
	"sync"

	"anytun/application"
	"anytun/domain/prefix"
)

// Hub owns the local ConnectionList/RoutingTable a sync cluster member
// exposes, fans local mutations out to every connected peer, and applies
// inbound records under a single writer lock (spec §4.8). It implements
// application.SyncBroadcaster so the packet pipeline can report roaming
// and auto-registration directly.
type Hub struct {
	conns  application.ConnectionList
	routes application.RoutingTable
	logger application.Logger

	applyMu sync.Mutex

	peersMu sync.Mutex
	peers   map[*peerConn]struct{}
}

// NewHub builds a Hub over the given stores. routes may be nil when
// routing is disabled; route records are then silently ignored.
func NewHub(conns application.ConnectionList, routes application.RoutingTable, logger application.Logger) *Hub {
	return &Hub{
		conns:  conns,
		routes: routes,
		logger: logger,
		peers:  make(map[*peerConn]struct{}),
	}
}

// BroadcastConnection implements application.SyncBroadcaster.
func (h *Hub) BroadcastConnection(rec application.SyncConnectionRecord) {
	h.fanOut(encodeConnectionRecord(rec))
}

// BroadcastRoute implements application.SyncBroadcaster.
func (h *Hub) BroadcastRoute(rec application.SyncRouteRecord) {
	h.fanOut(encodeRouteRecord(rec))
}

// fanOut enqueues payload onto every connected peer's outbox. A peer whose
// outbox is full is not blocked on; the record is dropped for that peer and
// logged, since sync is best-effort (spec §4.8).
func (h *Hub) fanOut(payload []byte) {
	h.peersMu.Lock()
	defer h.peersMu.Unlock()
	for p := range h.peers {
		select {
		case p.outbox <- payload:
		default:
			h.logger.Printf("sync: peer %s outbox full, dropping record", p.remote)
		}
	}
}

func (h *Hub) register(p *peerConn) {
	h.peersMu.Lock()
	h.peers[p] = struct{}{}
	h.peersMu.Unlock()
}

func (h *Hub) unregister(p *peerConn) {
	h.peersMu.Lock()
	delete(h.peers, p)
	h.peersMu.Unlock()
}

// applyRecord decodes and applies one inbound wire record. Applications
// are serialized under applyMu, matching the "mutation that occurs under
// the writer lock" wording of spec §4.8.
func (h *Hub) applyRecord(payload []byte) error {
	kind, connRec, routeRec, err := decodeRecord(payload)
	if err != nil {
		return err
	}

	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	switch kind {
	case application.SyncRecordConnection:
		return applyConnectionRecord(h.conns, connRec)
	case application.SyncRecordRoute:
		applyRouteRecord(h.routes, routeRec)
		return nil
	default:
		return fmt.Errorf("sync: unknown record kind %d", kind)
	}
}

// snapshot returns every connection record, then every route record,
// currently installed — the on-connect push order spec §4.8 requires.
func (h *Hub) snapshot() [][]byte {
	var records [][]byte
	h.conns.Each(func(mux uint16, param application.ConnectionParam) {
		records = append(records, encodeConnectionRecord(param.ToSyncRecord(mux)))
	})
	if h.routes != nil {
		h.routes.Each(func(p prefix.NetworkPrefix, mux uint16) {
			records = append(records, encodeRouteRecord(application.SyncRouteRecord{Prefix: p, Mux: mux}))
		})
	}
	return records
}
