// Package packet defines the fixed-byte-order wire layouts shared by every
// SATP component: the plain packet carried inside the tunnel and the
// encrypted packet carried on the wire.
package packet

import "encoding/binary"

// PayloadType identifies the L2/L3 protocol carried by a PlainPacket.
type PayloadType uint16

const (
	PayloadTypeUnspecified PayloadType = 0x0000
	PayloadTypeIPv4        PayloadType = 0x0800
	PayloadTypeIPv6        PayloadType = 0x86DD
	PayloadTypeEthernet    PayloadType = 0x6558
)

// plainHeaderLength is the size of the payload_type field.
const plainHeaderLength = 2

// PlainPacket is payload_type (u16, network order) followed by payload bytes.
// Buf is the full backing array (header + payload); Len is the number of
// valid bytes in Buf. PlainPacket values are reused by the pipeline's
// packet pool, so Len must be reset by whoever refills Buf.
type PlainPacket struct {
	Buf []byte
	Len int
}

// NewPlainPacket allocates a PlainPacket with a backing array sized to hold
// up to maxPacketLength header+payload bytes.
func NewPlainPacket(maxPacketLength int) *PlainPacket {
	return &PlainPacket{Buf: make([]byte, maxPacketLength)}
}

// HeaderLength returns the fixed header size of a PlainPacket.
func HeaderLength() int { return plainHeaderLength }

// Type returns the payload_type field.
func (p *PlainPacket) Type() PayloadType {
	if p.Len < plainHeaderLength {
		return PayloadTypeUnspecified
	}
	return PayloadType(binary.BigEndian.Uint16(p.Buf[0:2]))
}

// SetType writes the payload_type field.
func (p *PlainPacket) SetType(t PayloadType) {
	binary.BigEndian.PutUint16(p.Buf[0:2], uint16(t))
}

// Payload returns the payload bytes (everything after the header).
func (p *PlainPacket) Payload() []byte {
	if p.Len <= plainHeaderLength {
		return nil
	}
	return p.Buf[plainHeaderLength:p.Len]
}

// SetPayload copies data into the packet body after the header and updates Len.
func (p *PlainPacket) SetPayload(data []byte) {
	n := copy(p.Buf[plainHeaderLength:], data)
	p.Len = plainHeaderLength + n
}

// minimum payload length for each type carrying a destination address.
const (
	ipv4DstOffset = 16
	ipv4DstLen    = 4
	ipv6DstOffset = 24
	ipv6DstLen    = 16
	ethDstOffset  = 0
	ethDstLen     = 6
)

// DstAddr extracts the destination address bytes for routing lookups, per
// the payload type. ok is false when the payload is too short or the type
// carries no routable destination.
func (p *PlainPacket) DstAddr() (addr []byte, ok bool) {
	payload := p.Payload()
	switch p.Type() {
	case PayloadTypeIPv4:
		if len(payload) < ipv4DstOffset+ipv4DstLen {
			return nil, false
		}
		return payload[ipv4DstOffset : ipv4DstOffset+ipv4DstLen], true
	case PayloadTypeIPv6:
		if len(payload) < ipv6DstOffset+ipv6DstLen {
			return nil, false
		}
		return payload[ipv6DstOffset : ipv6DstOffset+ipv6DstLen], true
	case PayloadTypeEthernet:
		if len(payload) < ethDstOffset+ethDstLen {
			return nil, false
		}
		return payload[ethDstOffset : ethDstOffset+ethDstLen], true
	default:
		return nil, false
	}
}
