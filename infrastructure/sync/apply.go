package sync

import (
	"fmt"
	"net/netip"

	"anytun/application"
	"anytun/infrastructure/cryptography/satp"
	"anytun/infrastructure/replay"
)

// applyConnectionRecord implements spec §4.8's merge rule: an absent (zero)
// remote endpoint in the incoming record must not clobber an already-known
// endpoint, so the existing entry's RemoteEndpoint is kept unless the
// record carries a non-empty address.
func applyConnectionRecord(conns application.ConnectionList, rec application.SyncConnectionRecord) error {
	kd, err := satp.New(rec.MasterKey, rec.MasterSalt, rec.KeyLength)
	if err != nil {
		return fmt.Errorf("sync: apply connection mux=%d: %w", rec.Mux, err)
	}
	kd.SetRole(rec.Role)

	param := conns.GetOrNewUnlocked(rec.Mux)
	param.KD = kd
	param.SeqWindow = replay.NewWindow(rec.WindowSize)
	param.SeqWindowSize = rec.WindowSize
	param.NextSeqNr = rec.NextSeqNr
	if rec.RemoteAddress != "" {
		addr, err := netip.ParseAddr(rec.RemoteAddress)
		if err != nil {
			return fmt.Errorf("sync: apply connection mux=%d: remote address: %w", rec.Mux, err)
		}
		param.RemoteEndpoint = netip.AddrPortFrom(addr, rec.RemotePort)
	}
	conns.Update(rec.Mux, param)
	return nil
}

// applyRouteRecord implements spec §4.8's "route" record: insert or
// overwrite the route for the given prefix.
func applyRouteRecord(routes application.RoutingTable, rec application.SyncRouteRecord) {
	if routes == nil {
		return
	}
	routes.AddRoute(rec.Prefix, rec.Mux)
}

// ApplyConnectionRecord exposes applyConnectionRecord to callers that seed
// a ConnectionList outside of an inbound Hub connection, such as
// anytun-controld loading its static file at startup.
func ApplyConnectionRecord(conns application.ConnectionList, rec application.SyncConnectionRecord) error {
	return applyConnectionRecord(conns, rec)
}

// ApplyRouteRecord exposes applyRouteRecord the same way.
func ApplyRouteRecord(routes application.RoutingTable, rec application.SyncRouteRecord) {
	applyRouteRecord(routes, rec)
}
