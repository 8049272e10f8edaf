package tui

import "testing"

func TestValidateUint16(t *testing.T) {
	if err := validateUint16("4865"); err != nil {
		t.Errorf("validateUint16(4865): %v", err)
	}
	if err := validateUint16("not-a-number"); err == nil {
		t.Error("validateUint16(not-a-number) succeeded, want error")
	}
	if err := validateUint16("99999999"); err == nil {
		t.Error("validateUint16(overflow) succeeded, want error")
	}
}

func TestValidateHex(t *testing.T) {
	if err := validateHex("deadbeef"); err != nil {
		t.Errorf("validateHex(deadbeef): %v", err)
	}
	if err := validateHex("abc"); err == nil {
		t.Error("validateHex(odd length) succeeded, want error")
	}
	if err := validateHex("zzzz"); err == nil {
		t.Error("validateHex(non-hex) succeeded, want error")
	}
}

func TestDeriveFromPassphrase(t *testing.T) {
	k, err := deriveFromPassphrase("correct horse battery staple", 128)
	if err != nil {
		t.Fatalf("deriveFromPassphrase: %v", err)
	}
	if len(k.keyHex) != 32 {
		t.Errorf("keyHex length = %d, want 32", len(k.keyHex))
	}
	if len(k.saltHex) != 28 {
		t.Errorf("saltHex length = %d, want 28", len(k.saltHex))
	}

	k2, err := deriveFromPassphrase("correct horse battery staple", 128)
	if err != nil {
		t.Fatalf("deriveFromPassphrase (repeat): %v", err)
	}
	if k2.keyHex != k.keyHex || k2.saltHex != k.saltHex {
		t.Error("deriveFromPassphrase is not deterministic for the same input")
	}
}
