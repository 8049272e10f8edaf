package sync

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"anytun/application"
	"anytun/domain/prefix"
	"anytun/infrastructure/connection"
	"anytun/infrastructure/routing"
)

func TestWriteFramedRecord(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFramedRecord(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFramedRecord: %v", err)
	}
	if got, want := buf.String(), "00005 hello"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteFramedRecord_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFramedRecord(&buf, make([]byte, maxRecordLength+1)); err == nil {
		t.Fatal("expected error for oversized record")
	}
}

func TestExportedEncodeConnectionRecord(t *testing.T) {
	rec := application.SyncConnectionRecord{
		Mux: 7, Role: application.RoleRight, KeyLength: 128,
		MasterSalt: []byte("01234567890123"), MasterKey: make([]byte, 16),
		WindowSize: 100, NextSeqNr: 5, RemoteAddress: "198.51.100.1", RemotePort: 4865,
	}
	payload := EncodeConnectionRecord(rec)
	kind, got, _, err := decodeRecord(payload)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if kind != application.SyncRecordConnection {
		t.Fatalf("kind = %v, want connection", kind)
	}
	if got.Mux != rec.Mux || got.RemoteAddress != rec.RemoteAddress {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestExportedEncodeRouteRecord(t *testing.T) {
	p, err := prefix.New(prefix.FamilyIPv4, []byte{10, 0, 0, 0}, 8)
	if err != nil {
		t.Fatalf("prefix.New: %v", err)
	}
	rec := application.SyncRouteRecord{Prefix: p, Mux: 3}
	payload := EncodeRouteRecord(rec)
	kind, _, got, err := decodeRecord(payload)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if kind != application.SyncRecordRoute || got.Mux != 3 {
		t.Fatalf("got kind=%v rec=%+v", kind, got)
	}
}

func TestApplyConnectionRecord(t *testing.T) {
	conns := connection.NewList()
	rec := application.SyncConnectionRecord{
		Mux: 1, Role: application.RoleLeft, KeyLength: 128,
		MasterSalt: make([]byte, 14), MasterKey: make([]byte, 16), WindowSize: 50,
	}
	if err := ApplyConnectionRecord(conns, rec); err != nil {
		t.Fatalf("ApplyConnectionRecord: %v", err)
	}
	param, err := conns.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if param.SeqWindowSize != 50 {
		t.Fatalf("SeqWindowSize = %d, want 50", param.SeqWindowSize)
	}
}

func TestApplyRouteRecord(t *testing.T) {
	routes := routing.NewTable()
	p, err := prefix.New(prefix.FamilyIPv4, []byte{10, 0, 0, 0}, 8)
	if err != nil {
		t.Fatalf("prefix.New: %v", err)
	}
	ApplyRouteRecord(routes, application.SyncRouteRecord{Prefix: p, Mux: 9})
	if mux, err := routes.GetRoute(prefix.FamilyIPv4, []byte{10, 1, 2, 3}); err != nil || mux != 9 {
		t.Fatalf("GetRoute = %d, %v, want 9, nil", mux, err)
	}
}

func TestHub_ObserveReceivesSnapshot(t *testing.T) {
	serverConns := connection.NewList()
	serverConns.Add(1, application.ConnectionParam{
		KD:            mustKD(t),
		SeqWindowSize: 64,
	})
	serverHub := NewHub(serverConns, nil, testLogger{t})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	srv := &Server{hub: serverHub, ln: ln}
	go srv.Run(context.Background())

	observerConns := connection.NewList()
	observerHub := NewHub(observerConns, nil, testLogger{t})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := observerHub.Observe(ctx, ln.Addr().String()); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	if _, err := observerConns.Get(1); err != nil {
		t.Fatalf("observer did not receive connection 1: %v", err)
	}
}
