package sync

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"anytun/application"
	"anytun/domain/prefix"
	"anytun/infrastructure/connection"
	"anytun/infrastructure/cryptography/satp"
	"anytun/infrastructure/replay"
	"anytun/infrastructure/routing"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Printf(format string, v ...any) { l.t.Logf(format, v...) }
func (l testLogger) Debugf(format string, v ...any) { l.t.Logf("debug: "+format, v...) }

func mustKD(t *testing.T) application.KeyDerivation {
	t.Helper()
	kd, err := satp.New(make([]byte, 16), make([]byte, 14), 128)
	if err != nil {
		t.Fatal(err)
	}
	return kd
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	serverConns := connection.NewList()
	serverRoutes := routing.NewTable()
	serverConns.Add(1, application.ConnectionParam{
		KD:            mustKD(t),
		SeqWindow:     replay.NewWindow(16),
		SeqWindowSize: 16,
	})
	p, err := prefix.New(prefix.FamilyIPv4, []byte{10, 0, 0, 0}, 8)
	if err != nil {
		t.Fatal(err)
	}
	serverRoutes.AddRoute(p, 1)

	serverHub := NewHub(serverConns, serverRoutes, testLogger{t})
	srv, err := Listen(serverHub, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	clientConns := connection.NewList()
	clientRoutes := routing.NewTable()
	clientHub := NewHub(clientConns, clientRoutes, testLogger{t})
	go clientHub.DialPeer(ctx, srv.Addr().String())

	waitUntil(t, 2*time.Second, func() bool {
		_, err := clientConns.Get(1)
		return err == nil
	})
	waitUntil(t, 2*time.Second, func() bool {
		mux, err := clientRoutes.GetRoute(prefix.FamilyIPv4, []byte{10, 5, 5, 5})
		return err == nil && mux == 1
	})
}

func TestHub_BroadcastDelta(t *testing.T) {
	serverConns := connection.NewList()
	serverHub := NewHub(serverConns, nil, testLogger{t})
	srv, err := Listen(serverHub, "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	clientConns := connection.NewList()
	clientHub := NewHub(clientConns, nil, testLogger{t})
	go clientHub.DialPeer(ctx, srv.Addr().String())

	// wait for the connection to establish (no snapshot records to observe
	// directly, so poll until the server has a registered peer).
	waitUntil(t, 2*time.Second, func() bool {
		serverHub.peersMu.Lock()
		n := len(serverHub.peers)
		serverHub.peersMu.Unlock()
		return n == 1
	})

	remote := netip.MustParseAddrPort("203.0.113.9:9000")
	param := application.ConnectionParam{
		KD:             mustKD(t),
		SeqWindow:      replay.NewWindow(16),
		SeqWindowSize:  16,
		RemoteEndpoint: remote,
	}
	serverConns.Add(9, param)
	serverHub.BroadcastConnection(param.ToSyncRecord(9))

	waitUntil(t, 2*time.Second, func() bool {
		got, err := clientConns.Get(9)
		return err == nil && got.HasRemote() && got.RemoteEndpoint == remote
	})
}

func TestHub_MalformedRecordClosesOnlyThatConnection(t *testing.T) {
	conns := connection.NewList()
	conns.Add(1, application.ConnectionParam{KD: mustKD(t), SeqWindow: replay.NewWindow(16), SeqWindowSize: 16})
	hub := NewHub(conns, nil, testLogger{t})

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan struct{})
	go func() {
		hub.serve(ctx, serverSide)
		close(served)
	}()

	// Drain the snapshot push so the framer's write side doesn't block.
	reader := NewFramer(clientSide)
	go func() {
		for {
			if _, err := reader.ReadRecord(); err != nil {
				return
			}
		}
	}()

	writer := NewFramer(clientSide)
	if err := writer.WriteRecord([]byte("not a real record")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not terminate the connection after a malformed record")
	}

	if _, err := conns.Get(1); err != nil {
		t.Fatalf("local state mutated by malformed record: %v", err)
	}
}
