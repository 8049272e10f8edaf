package application

import "anytun/domain/packet"

// Cipher transforms PlainPacket payloads into EncryptedPacket ciphertext
// (and back), keying its AES-CTR keystream from KeyDerivation output and the
// packet header fields (spec §4.2).
type Cipher interface {
	// Encrypt writes len(plain) ciphertext bytes into enc and stamps enc's
	// header with seqNr/senderID/mux.
	Encrypt(plain []byte, enc *packet.EncryptedPacket, seqNr uint32, senderID, mux uint16) error
	// Decrypt reads enc's header and ciphertext and writes plaintext bytes
	// into plainOut[:n]. n is the number of bytes written.
	Decrypt(enc *packet.EncryptedPacket, plainOut []byte) (n int, err error)
}
