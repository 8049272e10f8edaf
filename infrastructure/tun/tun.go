// Package tun adapts golang.zx2c4.com/wireguard/tun's batched Device
// interface to application.TunDevice's plain byte-stream Read/Write (spec
// §1, §4.7). Per-platform header handling (utun's address-family prefix on
// darwin; none on linux/windows) lives in tun_<os>.go.
package tun

import (
	"errors"
	"fmt"

	"golang.zx2c4.com/wireguard/tun"

	"anytun/application"
)

// Adapter wraps a wireguard/tun Device. Buffers are allocated once in New
// and reused on every Read/Write call.
type Adapter struct {
	device tun.Device

	readBuf  []byte
	writeBuf []byte
	readVec  [][]byte
	writeVec [][]byte
	sizes    []int
}

// New wraps dev. maxPacketLength must be at least as large as the biggest
// packet the tunnel will carry; the platform header reservation is added
// on top of it.
func New(dev tun.Device, maxPacketLength int) *Adapter {
	header := readOffset()
	if writeOffset() > header {
		header = writeOffset()
	}
	size := maxPacketLength + header
	rb := make([]byte, size)
	wb := make([]byte, size)
	return &Adapter{
		device:   dev,
		readBuf:  rb,
		writeBuf: wb,
		readVec:  [][]byte{rb},
		writeVec: [][]byte{wb},
		sizes:    []int{0},
	}
}

// Open creates a named TUN interface with the given MTU and wraps it.
func Open(name string, mtu, maxPacketLength int) (application.TunDevice, error) {
	dev, err := tun.CreateTUN(name, mtu)
	if err != nil {
		return nil, fmt.Errorf("tun: create %q: %w", name, err)
	}
	return New(dev, maxPacketLength), nil
}

// Read copies one packet's payload, with the platform's header stripped,
// into p.
func (a *Adapter) Read(p []byte) (int, error) {
	a.sizes[0] = 0
	off := readOffset()
	if _, err := a.device.Read(a.readVec, a.sizes, off); err != nil {
		return 0, err
	}
	n := a.sizes[0]
	if n > len(p) {
		return 0, errors.New("tun: destination buffer too small")
	}
	copy(p, a.readBuf[off:off+n])
	return n, nil
}

// Write transmits p, prefixed with whatever header this platform's TUN
// driver requires.
func (a *Adapter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, errors.New("tun: empty packet")
	}
	off := writeOffset()
	if off+len(p) > len(a.writeBuf) {
		return 0, errors.New("tun: packet exceeds configured max size")
	}
	prepareWriteHeader(a.writeBuf[:off], p)
	copy(a.writeBuf[off:], p)
	a.writeVec[0] = a.writeBuf[:off+len(p)]

	if _, err := a.device.Write(a.writeVec, off); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying device.
func (a *Adapter) Close() error {
	return a.device.Close()
}
