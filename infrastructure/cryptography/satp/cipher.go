package satp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"anytun/application"
	"anytun/domain/packet"
)

// Cipher implements application.Cipher: AES-CTR keyed and IV'd from
// KeyDerivation output, per packet (spec §4.2).
type Cipher struct {
	kd  application.KeyDerivation
	dir application.Direction
}

// NewCipher builds a Cipher bound to kd and the traffic direction it will
// transform (outbound for encrypt, inbound for decrypt).
func NewCipher(kd application.KeyDerivation, dir application.Direction) *Cipher {
	return &Cipher{kd: kd, dir: dir}
}

// packetIV builds the 16-byte big-endian packet IV (spec §4.2):
//
//	bytes 0..5   zero
//	bytes 6..7   mux
//	bytes 8..9   sender_id
//	bytes 10..11 zero
//	bytes 12..15 seq_nr, left-shifted so the low 16 bits are zero
func packetIV(seqNr uint32, senderID, mux uint16) [16]byte {
	var iv [16]byte
	binary.BigEndian.PutUint16(iv[6:8], mux)
	binary.BigEndian.PutUint16(iv[8:10], senderID)
	binary.BigEndian.PutUint32(iv[12:16], seqNr<<16)
	return iv
}

// startingBlock XORs the session salt into the 14-byte prefix of iv, leaving
// bytes 14..15 at zero, and returns the resulting AES-CTR starting block.
func startingBlock(iv [16]byte, salt []byte) [16]byte {
	var block [16]byte
	copy(block[:], iv[:])
	for i := 0; i < 14 && i < len(salt); i++ {
		block[i] ^= salt[i]
	}
	return block
}

func (c *Cipher) sessionMaterial(seqNr uint32) (key []byte, salt [14]byte, err error) {
	keyLen := c.kd.KeyLength() / 8
	key = make([]byte, keyLen)
	if err := c.kd.Generate(c.dir, application.LabelEnc, seqNr, keyLen, key); err != nil {
		return nil, salt, err
	}
	if err := c.kd.Generate(c.dir, application.LabelSalt, seqNr, 14, salt[:]); err != nil {
		return nil, salt, err
	}
	return key, salt, nil
}

// Encrypt implements application.Cipher.Encrypt.
func (c *Cipher) Encrypt(plain []byte, enc *packet.EncryptedPacket, seqNr uint32, senderID, mux uint16) error {
	key, salt, err := c.sessionMaterial(seqNr)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	iv := packetIV(seqNr, senderID, mux)
	start := startingBlock(iv, salt[:])

	enc.SetSeqNr(seqNr)
	enc.SetSenderID(senderID)
	enc.SetMux(mux)
	ciphertext := make([]byte, len(plain))
	cipher.NewCTR(block, start[:]).XORKeyStream(ciphertext, plain)
	enc.SetPayload(ciphertext, 0)
	return nil
}

// Decrypt implements application.Cipher.Decrypt. It never fails
// cryptographically — CTR decryption of tampered ciphertext just produces
// garbage plaintext; detecting tampering is AuthAlgo's job (spec §4.2).
func (c *Cipher) Decrypt(enc *packet.EncryptedPacket, plainOut []byte) (int, error) {
	seqNr := enc.SeqNr()
	senderID := enc.SenderID()
	mux := enc.Mux()

	key, salt, err := c.sessionMaterial(seqNr)
	if err != nil {
		return 0, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	iv := packetIV(seqNr, senderID, mux)
	start := startingBlock(iv, salt[:])

	ciphertext := enc.Payload()
	if len(ciphertext) > len(plainOut) {
		return 0, ErrShortOutput
	}
	cipher.NewCTR(block, start[:]).XORKeyStream(plainOut[:len(ciphertext)], ciphertext)
	return len(ciphertext), nil
}
