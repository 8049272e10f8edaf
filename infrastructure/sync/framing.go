// Package sync implements the spec §4.8 sync protocol: one TCP listener
// per cluster member plus zero or more persistent outbound connections to
// other members, exchanging connection/route records so every member's
// ConnectionList and RoutingTable converge.
package sync

import (
	"bufio"
	"fmt"
	"io"
)

// maxRecordLength is the 5-ASCII-digit framing ceiling (spec §4.8).
const maxRecordLength = 99999

// Framer implements the wire framing: a 5-digit zero-padded ASCII length, a
// single space, then that many bytes of payload. Not safe for concurrent
// ReadRecord calls, or concurrent WriteRecord calls, but a single reader
// goroutine and a single writer goroutine may use it at once.
type Framer struct {
	rw  io.ReadWriteCloser
	r   *bufio.Reader
	hdr [6]byte
}

// NewFramer wraps rw with record framing.
func NewFramer(rw io.ReadWriteCloser) *Framer {
	return &Framer{rw: rw, r: bufio.NewReader(rw)}
}

// WriteRecord writes one length-prefixed record.
func (f *Framer) WriteRecord(payload []byte) error {
	if len(payload) > maxRecordLength {
		return fmt.Errorf("sync: record of %d bytes exceeds %d-byte frame limit", len(payload), maxRecordLength)
	}
	header := []byte(fmt.Sprintf("%05d ", len(payload)))
	if err := f.writeFull(header); err != nil {
		return err
	}
	return f.writeFull(payload)
}

func (f *Framer) writeFull(p []byte) error {
	for len(p) > 0 {
		n, err := f.rw.Write(p)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// ReadRecord reads exactly one length-prefixed record and returns its
// payload.
func (f *Framer) ReadRecord() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.hdr[:]); err != nil {
		return nil, fmt.Errorf("sync: read frame header: %w", err)
	}
	if f.hdr[5] != ' ' {
		return nil, fmt.Errorf("sync: malformed frame header %q", f.hdr)
	}
	length := 0
	for _, c := range f.hdr[:5] {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("sync: malformed frame length %q", f.hdr[:5])
		}
		length = length*10 + int(c-'0')
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(f.r, payload); err != nil {
			return nil, fmt.Errorf("sync: read frame payload: %w", err)
		}
	}
	return payload, nil
}

// Close closes the underlying connection.
func (f *Framer) Close() error {
	return f.rw.Close()
}

// WriteFramedRecord writes one length-prefixed record to any io.Writer,
// for callers that only have a write-only stream (anytun-config writing to
// stdout) rather than a full connection to wrap in a Framer.
func WriteFramedRecord(w io.Writer, payload []byte) error {
	if len(payload) > maxRecordLength {
		return fmt.Errorf("sync: record of %d bytes exceeds %d-byte frame limit", len(payload), maxRecordLength)
	}
	_, err := fmt.Fprintf(w, "%05d %s", len(payload), payload)
	return err
}
