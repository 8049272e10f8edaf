package pipeline

import (
	"context"
	"net/netip"
	"runtime"

	"golang.org/x/sync/errgroup"

	"anytun/application"
	"anytun/domain/packet"
)

// minWorkerCPUs is the spec §4.7 channel-sizing floor: N = max(CPUs, 4).
const minWorkerCPUs = 4

// outboundDatagram pairs an encrypted packet with the UDP endpoint it must
// be sent to, so the encrypt worker and UDP writer don't need to share a
// separate lookup for the connection's remote address.
type outboundDatagram struct {
	pkt  *packet.EncryptedPacket
	addr netip.AddrPort
}

// inboundDatagram pairs an encrypted packet with the UDP endpoint it was
// received from.
type inboundDatagram struct {
	pkt  *packet.EncryptedPacket
	addr netip.AddrPort
}

// Config collects everything a Pipeline needs that isn't itself part of
// the packet-plane state machine: transport and device handles, the
// shared connection/routing tables, and the local identity fields stamped
// onto every outbound packet.
type Config struct {
	Tun    application.TunDevice
	Socket application.UDPSocket
	Conns  application.ConnectionList
	// Routes is nil when routing is disabled; the pipeline then always uses
	// the connection list's single entry (spec §4.7 step 4).
	Routes application.RoutingTable
	// Broadcaster fans connection mutations (roaming, auto-registration)
	// out to sync peers. May be nil.
	Broadcaster application.SyncBroadcaster
	Logger      application.Logger

	DeviceType      application.DeviceType
	MaxPacketLength int
	SenderID        uint16
	TagLength       int

	// AutoRegisterTemplate, when non-nil, allows the decrypt worker to
	// create a new connection for the mux of a datagram that arrives while
	// the connection list is empty, using *AutoRegisterTemplate as the keying material
	// and the datagram's source as the remote endpoint (spec §4.7 step 3).
	// The KD's role and seq-window size are taken as-is; RemoteEndpoint is
	// overwritten for each registration.
	AutoRegisterTemplate *application.ConnectionParam

	// NumCPU overrides runtime.NumCPU for channel sizing; zero means use
	// the runtime value. Tests use this to keep pool sizes small.
	NumCPU int
}

// Pipeline owns the channels and pools described in spec §4.7 and the
// goroutines that drive packets through them.
type Pipeline struct {
	cfg Config

	plainPool *Pool[packet.PlainPacket]
	encPool   *Pool[packet.EncryptedPacket]

	plainIn  chan *packet.PlainPacket
	plainOut chan *packet.PlainPacket
	encOut   chan outboundDatagram
	encIn    chan inboundDatagram
}

// New builds a Pipeline with channel and pool capacities sized per spec
// §4.7: chanSize = 2N+4, plainPool/encPool = 2*chanSize+1.
func New(cfg Config) *Pipeline {
	n := cfg.NumCPU
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < minWorkerCPUs {
		n = minWorkerCPUs
	}
	chanSize := 2*n + 4
	poolSize := 2*chanSize + 1

	maxLen := cfg.MaxPacketLength

	return &Pipeline{
		cfg:       cfg,
		plainPool: NewPool(poolSize, func() *packet.PlainPacket { return packet.NewPlainPacket(maxLen) }),
		encPool:   NewPool(poolSize, func() *packet.EncryptedPacket { return packet.NewEncryptedPacket(maxLen) }),
		plainIn:   make(chan *packet.PlainPacket, chanSize),
		plainOut:  make(chan *packet.PlainPacket, chanSize),
		encOut:    make(chan outboundDatagram, chanSize),
		encIn:     make(chan inboundDatagram, chanSize),
	}
}

// Run starts all six tasks and blocks until ctx is canceled or one of them
// returns a non-nil error, at which point every other task is canceled too
// (fail-stop: the process has no meaningful way to run with only some of
// the six tasks alive).
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runTunReader(ctx) })
	g.Go(func() error { return p.runTunWriter(ctx) })
	g.Go(func() error { return p.runUDPReader(ctx) })
	g.Go(func() error { return p.runUDPWriter(ctx) })
	g.Go(func() error { return p.runEncryptWorker(ctx) })
	g.Go(func() error { return p.runDecryptWorker(ctx) })
	return g.Wait()
}
