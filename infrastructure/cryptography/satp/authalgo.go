package satp

import (
	"crypto/hmac"
	"crypto/sha1"
	"fmt"

	"anytun/application"
	"anytun/domain/packet"
)

const hmacSHA1Size = sha1.Size

// AuthAlgo implements application.AuthAlgo: HMAC-SHA1 truncated to
// tagLength bytes (spec §4.3).
type AuthAlgo struct {
	kd        application.KeyDerivation
	tagLength int
}

// NewAuthAlgo builds an AuthAlgo bound to kd, with tags truncated to
// tagLength bytes (0..20). Direction is supplied per call, since a single
// AuthAlgo instance authenticates both the connection's outbound tags and
// verifies its inbound ones.
func NewAuthAlgo(kd application.KeyDerivation, tagLength int) (*AuthAlgo, error) {
	if tagLength < 0 || tagLength > hmacSHA1Size {
		return nil, fmt.Errorf("%w: auth tag length must be 0..%d, got %d", ErrConfig, hmacSHA1Size, tagLength)
	}
	return &AuthAlgo{kd: kd, tagLength: tagLength}, nil
}

func (a *AuthAlgo) TagLength() int { return a.tagLength }

func (a *AuthAlgo) authKey(dir application.Direction, seqNr uint32) ([]byte, error) {
	key := make([]byte, hmacSHA1Size)
	if err := a.kd.Generate(dir, application.LabelAuth, seqNr, hmacSHA1Size, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateTag computes HMAC-SHA1 over enc's authenticated portion (header +
// payload, tag excluded) and appends its left-most TagLength bytes.
func (a *AuthAlgo) GenerateTag(enc *packet.EncryptedPacket, dir application.Direction, seqNr uint32) error {
	if a.tagLength == 0 {
		return nil
	}
	key, err := a.authKey(dir, seqNr)
	if err != nil {
		return err
	}
	mac := hmac.New(sha1.New, key)
	mac.Write(enc.AuthenticatedPortion())
	sum := mac.Sum(nil)
	enc.AppendTag(sum[:a.tagLength])
	return nil
}

// VerifyTag recomputes the tag and compares it in constant time.
func (a *AuthAlgo) VerifyTag(enc *packet.EncryptedPacket, dir application.Direction, seqNr uint32) (bool, error) {
	if a.tagLength == 0 {
		return true, nil
	}
	key, err := a.authKey(dir, seqNr)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha1.New, key)
	mac.Write(enc.AuthenticatedPortion())
	sum := mac.Sum(nil)
	return hmac.Equal(sum[:a.tagLength], enc.Tag()), nil
}
