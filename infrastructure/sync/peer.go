package sync

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// outboxSize bounds how many un-sent delta records a slow peer can
// accumulate before fanOut starts dropping records for it.
const outboxSize = 64

// retryBackoff is the spec §4.8 fixed reconnect delay for a dropped peer.
const retryBackoff = 10 * time.Second

// dialTimeout is the spec §5 bound on a single TCP connect attempt.
const dialTimeout = 12 * time.Second

type peerConn struct {
	remote string
	framer *Framer
	outbox chan []byte
}

// serve drives one peer connection, inbound or outbound, until ctx is
// canceled or the connection fails. It pushes the current snapshot, then
// forwards broadcast deltas, while concurrently reading and applying
// inbound records. A malformed inbound record terminates only this
// connection; local state is unaffected (spec §4.8).
func (h *Hub) serve(ctx context.Context, conn net.Conn) {
	p := &peerConn{
		remote: conn.RemoteAddr().String(),
		framer: NewFramer(conn),
		outbox: make(chan []byte, outboxSize),
	}
	h.register(p)
	defer h.unregister(p)
	defer conn.Close()

	// stop unblocks the write goroutine when the read loop exits for any
	// reason, independent of ctx: a malformed record must close only this
	// connection, not cancel the caller's context.
	stop := make(chan struct{})

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for _, rec := range h.snapshot() {
			if err := p.framer.WriteRecord(rec); err != nil {
				return
			}
		}
		for {
			select {
			case rec := <-p.outbox:
				if err := p.framer.WriteRecord(rec); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	for {
		payload, err := p.framer.ReadRecord()
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				h.logger.Printf("sync: peer %s: %v", p.remote, err)
			}
			break
		}
		if err := h.applyRecord(payload); err != nil {
			h.logger.Printf("sync: peer %s: malformed record, closing: %v", p.remote, err)
			break
		}
	}

	conn.Close()
	close(stop)
	<-writeDone
}

// dialWarnEvery is how often a run of failed dial attempts is logged at
// Printf (WARN) level; the rest are logged at Debugf, so a peer that is
// down for a while doesn't flood the log with one line per retryBackoff.
const dialWarnEvery = 5

// DialPeer maintains one persistent outbound sync connection to addr,
// reconnecting on a fixed backoff after every drop (spec §4.8). It blocks
// until ctx is canceled.
func (h *Hub) DialPeer(ctx context.Context, addr string) {
	d := net.Dialer{Timeout: dialTimeout}
	attempt := 0
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			h.logDialFailure(addr, attempt, err)
			if !sleepOrDone(ctx, retryBackoff) {
				return
			}
			continue
		}
		attempt = 0

		h.serve(ctx, conn)

		if ctx.Err() != nil {
			return
		}
		if !sleepOrDone(ctx, retryBackoff) {
			return
		}
	}
}

// logDialFailure reports one failed dial attempt, logging every
// dialWarnEvery-th attempt at Printf and the rest at Debugf.
func (h *Hub) logDialFailure(addr string, attempt int, err error) {
	if attempt%dialWarnEvery == 0 {
		h.logger.Printf("sync: dial %s: attempt %d: %v", addr, attempt, err)
		return
	}
	h.logger.Debugf("sync: dial %s: attempt %d: %v", addr, attempt, err)
}

// Observe dials addr once and serves the connection without retrying,
// returning when ctx is canceled or the connection drops. Unlike DialPeer
// it never reconnects: it's meant for a one-shot, read-only observer (a
// Hub with no local connections/routes of its own, such as
// anytun-showtables) that wants the peer's snapshot and deltas applied to
// its tables for as long as it stays connected, not a cluster member that
// must keep rejoining.
func (h *Hub) Observe(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("sync: dial %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	h.serve(ctx, conn)
	return nil
}

// sleepOrDone waits for d or ctx cancellation, reporting false on
// cancellation so the caller can stop retrying.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
