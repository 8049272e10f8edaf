package satp

import (
	"bytes"
	"testing"

	"anytun/application"
	"anytun/domain/packet"
)

func pairedKDs(t *testing.T) (left, right *KeyDerivation) {
	t.Helper()
	masterKey := bytes.Repeat([]byte{0x5A}, 16)
	masterSalt := bytes.Repeat([]byte{0x3C}, 14)
	left = mustKD(t, masterKey, masterSalt, 128)
	left.SetRole(application.RoleLeft)
	right = mustKD(t, masterKey, masterSalt, 128)
	right.SetRole(application.RoleRight)
	return left, right
}

func TestCipher_RoundTrip_AllSequenceBoundaries(t *testing.T) {
	left, right := pairedKDs(t)
	encCipher := NewCipher(left, application.DirectionOutbound)
	decCipher := NewCipher(right, application.DirectionInbound)

	plain := bytes.Repeat([]byte("hello world"), 6)[:64]

	for _, seq := range []uint32{0, 1, 0xFFFFFFFF, 0x7FFFFFFF} {
		enc := packet.NewEncryptedPacket(1500)
		if err := encCipher.Encrypt(plain, enc, seq, 1, 1); err != nil {
			t.Fatalf("seq=%d: Encrypt: %v", seq, err)
		}
		out := make([]byte, len(plain))
		n, err := decCipher.Decrypt(enc, out)
		if err != nil {
			t.Fatalf("seq=%d: Decrypt: %v", seq, err)
		}
		if !bytes.Equal(out[:n], plain) {
			t.Fatalf("seq=%d: round trip mismatch:\n got  %x\n want %x", seq, out[:n], plain)
		}
	}
}

func TestCipher_EncryptDecryptScenario(t *testing.T) {
	// spec §8 scenario 2: payload type 0x0800, payload "hello world" padded
	// to 64 bytes, mux=1, sender_id=1, seq=1, LEFT/OUT -> RIGHT/IN.
	left, right := pairedKDs(t)

	plainPkt := packet.NewPlainPacket(1500)
	plainPkt.SetType(packet.PayloadTypeIPv4)
	payload := make([]byte, 62)
	copy(payload, "hello world")
	plainPkt.SetPayload(payload)

	authLeft, err := NewAuthAlgo(left, 10)
	if err != nil {
		t.Fatal(err)
	}
	authRight, err := NewAuthAlgo(right, 10)
	if err != nil {
		t.Fatal(err)
	}

	encCipher := NewCipher(left, application.DirectionOutbound)
	enc := packet.NewEncryptedPacket(1500)
	if err := encCipher.Encrypt(plainPkt.Payload(), enc, 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := authLeft.GenerateTag(enc, application.DirectionOutbound, 1); err != nil {
		t.Fatal(err)
	}

	ok, err := authRight.VerifyTag(enc, application.DirectionInbound, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected tag to verify")
	}

	decCipher := NewCipher(right, application.DirectionInbound)
	out := make([]byte, 1500)
	n, err := decCipher.Decrypt(enc, out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out[:n], payload) {
		t.Fatalf("payload mismatch:\n got  %x\n want %x", out[:n], payload)
	}
}

func TestCipher_DifferentSeqProducesDifferentCiphertext(t *testing.T) {
	left, _ := pairedKDs(t)
	encCipher := NewCipher(left, application.DirectionOutbound)
	plain := bytes.Repeat([]byte{0x42}, 32)

	enc1 := packet.NewEncryptedPacket(1500)
	_ = encCipher.Encrypt(plain, enc1, 1, 1, 1)
	enc2 := packet.NewEncryptedPacket(1500)
	_ = encCipher.Encrypt(plain, enc2, 2, 1, 1)

	if bytes.Equal(enc1.Payload(), enc2.Payload()) {
		t.Fatal("expected different ciphertext for different sequence numbers")
	}
}
