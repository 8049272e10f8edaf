package application

import "anytun/domain/packet"

// AuthAlgo appends and verifies the truncated HMAC tag on an EncryptedPacket
// (spec §4.3).
type AuthAlgo interface {
	// TagLength returns T, the configured tag length in bytes (0..20).
	TagLength() int
	// GenerateTag computes the tag over enc's authenticated portion for the
	// given direction/sequence and appends it via enc.AppendTag.
	GenerateTag(enc *packet.EncryptedPacket, dir Direction, seqNr uint32) error
	// VerifyTag recomputes the tag over enc's authenticated portion and
	// compares it in constant time against enc.Tag(). A zero-length tag
	// configuration always verifies.
	VerifyTag(enc *packet.EncryptedPacket, dir Direction, seqNr uint32) (bool, error)
}
