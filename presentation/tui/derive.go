package tui

import (
	"encoding/hex"

	"anytun/infrastructure/cryptography/satp"
)

type derivedKey struct {
	keyHex  string
	saltHex string
}

// deriveFromPassphrase runs the same passphrase-derivation the -E flag
// uses (spec §4.2) so the wizard can put the resulting key/salt pair into
// the ConnectionFile rather than the passphrase itself.
func deriveFromPassphrase(passphrase string, keyLengthBits int) (derivedKey, error) {
	kd, err := satp.NewFromPassphrase(passphrase, keyLengthBits)
	if err != nil {
		return derivedKey{}, err
	}
	return derivedKey{
		keyHex:  hex.EncodeToString(kd.MasterKey()),
		saltHex: hex.EncodeToString(kd.MasterSalt()),
	}, nil
}
