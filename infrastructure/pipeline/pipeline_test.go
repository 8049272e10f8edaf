package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/netip"
	"testing"
	"time"

	"anytun/application"
	"anytun/domain/packet"
	"anytun/infrastructure/connection"
	"anytun/infrastructure/cryptography/satp"
	"anytun/infrastructure/replay"
)

type fakeDatagram struct {
	data []byte
	addr netip.AddrPort
}

type fakeSocket struct {
	toRead  chan fakeDatagram
	written chan fakeDatagram
	closed  chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		toRead:  make(chan fakeDatagram, 4),
		written: make(chan fakeDatagram, 4),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadFromUDPAddrPort(p []byte) (int, netip.AddrPort, error) {
	select {
	case d := <-s.toRead:
		return copy(p, d.data), d.addr, nil
	case <-s.closed:
		return 0, netip.AddrPort{}, io.EOF
	}
}

func (s *fakeSocket) WriteToUDPAddrPort(p []byte, addr netip.AddrPort) (int, error) {
	cp := append([]byte(nil), p...)
	select {
	case s.written <- fakeDatagram{data: cp, addr: addr}:
	default:
	}
	return len(p), nil
}

func (s *fakeSocket) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

type fakeTun struct {
	toRead  chan []byte
	written chan []byte
	closed  chan struct{}
}

func newFakeTun() *fakeTun {
	return &fakeTun{
		toRead:  make(chan []byte, 4),
		written: make(chan []byte, 4),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTun) Read(p []byte) (int, error) {
	select {
	case frame := <-f.toRead:
		return copy(p, frame), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakeTun) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	select {
	case f.written <- cp:
	default:
	}
	return len(p), nil
}

func (f *fakeTun) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

type fakeLogger struct{}

func (fakeLogger) Printf(string, ...any) {}
func (fakeLogger) Debugf(string, ...any) {}

func mustKD(t *testing.T, key, salt []byte, role application.Role) *satp.KeyDerivation {
	t.Helper()
	kd, err := satp.New(key, salt, 128)
	if err != nil {
		t.Fatalf("satp.New: %v", err)
	}
	kd.SetRole(role)
	return kd
}

func TestPipeline_EncryptPath(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x11}, 16)
	masterSalt := bytes.Repeat([]byte{0x22}, 14)
	kdLocal := mustKD(t, masterKey, masterSalt, application.RoleLeft)

	conns := connection.NewList()
	remote := netip.MustParseAddrPort("203.0.113.5:4242")
	conns.Add(1, application.ConnectionParam{
		KD:             kdLocal,
		SeqWindow:      replay.NewWindow(16),
		SeqWindowSize:  16,
		RemoteEndpoint: remote,
	})

	tun := newFakeTun()
	sock := newFakeSocket()
	p := New(Config{
		Tun:             tun,
		Socket:          sock,
		Conns:           conns,
		DeviceType:      application.DeviceTypeTun,
		MaxPacketLength: 1500,
		SenderID:        7,
		TagLength:       10,
		Logger:          fakeLogger{},
		NumCPU:          4,
	})

	frame := append([]byte{0x45}, bytes.Repeat([]byte{0xAB}, 39)...)
	tun.toRead <- frame

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	var captured fakeDatagram
	select {
	case captured = <-sock.written:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for encrypted datagram")
	}

	cancel()
	tun.Close()
	sock.Close()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pipeline shutdown")
	}

	if captured.addr != remote {
		t.Fatalf("datagram sent to %v, want %v", captured.addr, remote)
	}

	enc := packet.NewEncryptedPacket(1500)
	copy(enc.Buf, captured.data)
	enc.Len = len(captured.data)
	enc.TagLen = 10

	if enc.Mux() != 1 || enc.SenderID() != 7 || enc.SeqNr() != 0 {
		t.Fatalf("unexpected header: mux=%d sender=%d seq=%d", enc.Mux(), enc.SenderID(), enc.SeqNr())
	}

	kdPeer := mustKD(t, masterKey, masterSalt, application.RoleRight)
	auth, err := satp.NewAuthAlgo(kdPeer, 10)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := auth.VerifyTag(enc, application.DirectionInbound, enc.SeqNr())
	if err != nil || !ok {
		t.Fatalf("tag verification failed: ok=%v err=%v", ok, err)
	}

	cipher := satp.NewCipher(kdPeer, application.DirectionInbound)
	out := make([]byte, 1500)
	n, err := cipher.Decrypt(enc, out)
	if err != nil {
		t.Fatal(err)
	}
	if packet.PayloadType(binary.BigEndian.Uint16(out[0:2])) != packet.PayloadTypeIPv4 {
		t.Fatalf("decrypted payload type = %x, want IPv4", out[0:2])
	}
	if !bytes.Equal(out[2:n], frame) {
		t.Fatalf("decrypted payload mismatch:\n got  %x\n want %x", out[2:n], frame)
	}
}

func TestPipeline_DecryptPath(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x33}, 16)
	masterSalt := bytes.Repeat([]byte{0x44}, 14)
	kdSender := mustKD(t, masterKey, masterSalt, application.RoleLeft)
	kdLocal := mustKD(t, masterKey, masterSalt, application.RoleRight)

	conns := connection.NewList()
	const mux = uint16(5)
	conns.Add(mux, application.ConnectionParam{
		KD:            kdLocal,
		SeqWindow:     replay.NewWindow(16),
		SeqWindowSize: 16,
	})

	payload := bytes.Repeat([]byte{0x99}, 20)
	plain := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(plain[0:2], uint16(packet.PayloadTypeIPv4))
	copy(plain[2:], payload)

	encCipher := satp.NewCipher(kdSender, application.DirectionOutbound)
	enc := packet.NewEncryptedPacket(1500)
	if err := encCipher.Encrypt(plain, enc, 0, 9, mux); err != nil {
		t.Fatal(err)
	}
	auth, err := satp.NewAuthAlgo(kdSender, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.GenerateTag(enc, application.DirectionOutbound, 0); err != nil {
		t.Fatal(err)
	}

	tun := newFakeTun()
	sock := newFakeSocket()
	p := New(Config{
		Tun:             tun,
		Socket:          sock,
		Conns:           conns,
		DeviceType:      application.DeviceTypeTun,
		MaxPacketLength: 1500,
		SenderID:        1,
		TagLength:       10,
		Logger:          fakeLogger{},
		NumCPU:          4,
	})

	sock.toRead <- fakeDatagram{
		data: append([]byte(nil), enc.Buf[:enc.Len]...),
		addr: netip.MustParseAddrPort("198.51.100.9:5555"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	var written []byte
	select {
	case written = <-tun.written:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decrypted frame")
	}

	cancel()
	tun.Close()
	sock.Close()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pipeline shutdown")
	}

	if !bytes.Equal(written, payload) {
		t.Fatalf("decrypted frame mismatch:\n got  %x\n want %x", written, payload)
	}

	param, err := conns.Get(mux)
	if err != nil {
		t.Fatal(err)
	}
	if !param.HasRemote() {
		t.Fatal("expected the connection to learn the peer's source endpoint")
	}
}

func TestClassifyTunPayload(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want packet.PayloadType
	}{
		{"ipv4", []byte{0x45, 0, 0}, packet.PayloadTypeIPv4},
		{"ipv6", []byte{0x60, 0, 0}, packet.PayloadTypeIPv6},
		{"unknown", []byte{0x10}, packet.PayloadTypeUnspecified},
		{"empty", nil, packet.PayloadTypeUnspecified},
	}
	for _, c := range cases {
		if got := classifyTunPayload(c.in); got != c.want {
			t.Errorf("%s: classifyTunPayload = %x, want %x", c.name, got, c.want)
		}
	}
}
