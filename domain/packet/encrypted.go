package packet

import "encoding/binary"

// encryptedHeaderLength is seq_nr(4) + sender_id(2) + mux(2).
const encryptedHeaderLength = 8

// EncryptedPacket is the on-the-wire UDP datagram: an 8-byte header, a
// ciphertext payload, and an optional appended authentication tag.
//
// Buf is the full backing array; Len is the number of valid bytes
// currently in Buf (header + ciphertext + tag). TagLen records how many of
// the trailing bytes are the auth tag, so Payload() and Tag() can locate
// the ciphertext region regardless of T.
type EncryptedPacket struct {
	Buf    []byte
	Len    int
	TagLen int
}

// NewEncryptedPacket allocates an EncryptedPacket with a backing array sized
// to hold up to maxPacketLength header+payload+tag bytes.
func NewEncryptedPacket(maxPacketLength int) *EncryptedPacket {
	return &EncryptedPacket{Buf: make([]byte, maxPacketLength)}
}

// EncryptedHeaderLength returns the fixed header size of an EncryptedPacket.
func EncryptedHeaderLength() int { return encryptedHeaderLength }

func (e *EncryptedPacket) SeqNr() uint32 {
	return binary.BigEndian.Uint32(e.Buf[0:4])
}

func (e *EncryptedPacket) SetSeqNr(v uint32) {
	binary.BigEndian.PutUint32(e.Buf[0:4], v)
}

func (e *EncryptedPacket) SenderID() uint16 {
	return binary.BigEndian.Uint16(e.Buf[4:6])
}

func (e *EncryptedPacket) SetSenderID(v uint16) {
	binary.BigEndian.PutUint16(e.Buf[4:6], v)
}

func (e *EncryptedPacket) Mux() uint16 {
	return binary.BigEndian.Uint16(e.Buf[6:8])
}

func (e *EncryptedPacket) SetMux(v uint16) {
	binary.BigEndian.PutUint16(e.Buf[6:8], v)
}

// AuthenticatedPortion is the header+ciphertext span the auth tag covers
// (tag itself excluded).
func (e *EncryptedPacket) AuthenticatedPortion() []byte {
	return e.Buf[:e.Len-e.TagLen]
}

// Payload is the ciphertext bytes, header and tag excluded.
func (e *EncryptedPacket) Payload() []byte {
	if e.Len < encryptedHeaderLength+e.TagLen {
		return nil
	}
	return e.Buf[encryptedHeaderLength : e.Len-e.TagLen]
}

// Tag is the trailing authentication tag bytes.
func (e *EncryptedPacket) Tag() []byte {
	if e.TagLen == 0 {
		return nil
	}
	return e.Buf[e.Len-e.TagLen : e.Len]
}

// SetPayload copies ciphertext into the packet body, sets Len to header plus
// ciphertext and clears TagLen. tagLen is not used and no room is checked
// for the tag; the caller appends the tag separately via AppendTag.
func (e *EncryptedPacket) SetPayload(ciphertext []byte, tagLen int) {
	n := copy(e.Buf[encryptedHeaderLength:], ciphertext)
	e.Len = encryptedHeaderLength + n
	e.TagLen = 0
	_ = tagLen // tag is appended later, once computed, via AppendTag
}

// AppendTag appends the authentication tag after the payload and records TagLen.
func (e *EncryptedPacket) AppendTag(tag []byte) {
	n := copy(e.Buf[e.Len:], tag)
	e.TagLen = n
	e.Len += n
}
