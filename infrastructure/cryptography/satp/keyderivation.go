package satp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"anytun/application"
)

const masterSaltLength = 14

// KeyDerivation implements application.KeyDerivation: the SATP AES-CTR PRF
// (spec §4.1). A single AES block cipher is cached on the master key — Go's
// cipher.Block is safe for concurrent use by both the encrypt and decrypt
// workers, so unlike the original libgcrypt-based implementation (which
// keeps one stateful stream handle per direction) one cached block cipher
// is enough; cipher.NewCTR streams are created fresh per Generate call from
// the per-packet counter.
type KeyDerivation struct {
	role       application.Role
	keyLength  int // bits
	masterKey  []byte
	masterSalt [masterSaltLength]byte
	block      cipher.Block
}

// New builds a KeyDerivation from an explicit master key and 14-byte master
// salt. keyLength is the key size in bits (128, 192 or 256) and must match
// len(masterKey)*8.
func New(masterKey, masterSalt []byte, keyLength int) (*KeyDerivation, error) {
	if len(masterSalt) != masterSaltLength {
		return nil, fmt.Errorf("%w: master salt must be %d bytes, got %d", ErrConfig, masterSaltLength, len(masterSalt))
	}
	if keyLength != 128 && keyLength != 192 && keyLength != 256 {
		return nil, fmt.Errorf("%w: key length must be 128, 192 or 256 bits, got %d", ErrConfig, keyLength)
	}
	if len(masterKey)*8 != keyLength {
		return nil, fmt.Errorf("%w: master key is %d bits, want %d", ErrConfig, len(masterKey)*8, keyLength)
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	kd := &KeyDerivation{
		keyLength: keyLength,
		masterKey: append([]byte(nil), masterKey...),
		block:     block,
	}
	copy(kd.masterSalt[:], masterSalt)
	return kd, nil
}

// NewFromPassphrase derives master_key and master_salt from a UTF-8
// passphrase per spec §4.2: master_key is a SHA-{256,384,512} digest of the
// passphrase (chosen by keyLength) left-truncated to keyLength bits;
// master_salt is the right-most 14 bytes of the SHA-1 digest of the
// passphrase.
func NewFromPassphrase(passphrase string, keyLength int) (*KeyDerivation, error) {
	var digest []byte
	switch keyLength {
	case 128:
		sum := sha256.Sum256([]byte(passphrase))
		digest = sum[:]
	case 192:
		sum := sha512.Sum384([]byte(passphrase))
		digest = sum[:]
	case 256:
		sum := sha512.Sum512([]byte(passphrase))
		digest = sum[:]
	default:
		return nil, fmt.Errorf("%w: key length must be 128, 192 or 256 bits, got %d", ErrConfig, keyLength)
	}
	masterKey := digest[:keyLength/8]

	sha1Sum := sha1.Sum([]byte(passphrase))
	masterSalt := sha1Sum[len(sha1Sum)-masterSaltLength:]

	return New(masterKey, masterSalt, keyLength)
}

func (k *KeyDerivation) SetRole(role application.Role) { k.role = role }
func (k *KeyDerivation) Role() application.Role         { return k.role }
func (k *KeyDerivation) KeyLength() int                 { return k.keyLength }
func (k *KeyDerivation) MasterSalt() []byte             { return append([]byte(nil), k.masterSalt[:]...) }
func (k *KeyDerivation) MasterKey() []byte              { return append([]byte(nil), k.masterKey...) }

// Generate implements application.KeyDerivation.Generate: it builds the
// 16-byte AES-CTR counter block (spec §4.1 counter layout), XORs its
// 14-byte prefix with master_salt, and writes the first `length` bytes of
// the resulting keystream into out.
func (k *KeyDerivation) Generate(dir application.Direction, label application.Label, seqNr uint32, length int, out []byte) error {
	if length > len(out) {
		return ErrShortOutput
	}
	var counter [16]byte
	binary.BigEndian.PutUint32(counter[6:10], effectiveLabel(dir, k.role, label))
	binary.BigEndian.PutUint32(counter[10:14], seqNr)
	for i := 0; i < masterSaltLength; i++ {
		counter[i] ^= k.masterSalt[i]
	}

	stream := cipher.NewCTR(k.block, counter[:])
	for i := 0; i < length; i++ {
		out[i] = 0
	}
	stream.XORKeyStream(out[:length], out[:length])
	return nil
}
