package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"anytun/application"
	"anytun/infrastructure/cryptography/satp"
	"anytun/infrastructure/replay"
	"anytun/infrastructure/routing"
)

// BuildKeyDerivation constructs the KeyDerivation the -k/-E/-K/-A/-e flags
// describe (spec §4.2): either a passphrase-derived key/salt, or an
// explicit hex-encoded master key and salt.
func (c *Config) BuildKeyDerivation() (application.KeyDerivation, error) {
	role, err := RoleFromFlag(c.Role)
	if err != nil {
		return nil, err
	}

	var kd *satp.KeyDerivation
	switch strings.ToLower(c.KDF) {
	case "", "satp":
		if c.Passphrase != "" {
			kd, err = satp.NewFromPassphrase(c.Passphrase, c.KeyLengthBits)
		} else {
			key, kerr := hex.DecodeString(c.MasterKeyHex)
			if kerr != nil {
				return nil, fmt.Errorf("config: -K master key: %w", kerr)
			}
			salt, serr := hex.DecodeString(c.MasterSaltHex)
			if serr != nil {
				return nil, fmt.Errorf("config: -A master salt: %w", serr)
			}
			kd, err = satp.New(key, salt, c.KeyLengthBits)
		}
	default:
		return nil, fmt.Errorf("config: unknown key derivation %q", c.KDF)
	}
	if err != nil {
		return nil, err
	}
	kd.SetRole(role)
	return kd, nil
}

// BuildConnectionParam assembles the ConnectionParam for this process's own
// mux, ready to hand to a ConnectionList or use as an auto-register
// template (spec §4.7 step 3).
func (c *Config) BuildConnectionParam(kd application.KeyDerivation) application.ConnectionParam {
	return application.ConnectionParam{
		KD:            kd,
		SeqWindow:     replay.NewWindow(c.Window),
		SeqWindowSize: c.Window,
	}
}

// BuildRoutingTable returns a populated RoutingTable for -R, or nil if no
// routes were given (pipeline falls back to the single-connection path).
func (c *Config) BuildRoutingTable() application.RoutingTable {
	if len(c.Routes) == 0 {
		return nil
	}
	t := routing.NewTable()
	for _, r := range c.Routes {
		t.AddRoute(r.Prefix, r.Mux)
	}
	return t
}

// BuildDeviceType maps the -t flag to application.DeviceType.
func BuildDeviceType(s string) (application.DeviceType, error) {
	switch strings.ToLower(s) {
	case "", "tun":
		return application.DeviceTypeTun, nil
	case "tap":
		return application.DeviceTypeTap, nil
	default:
		return 0, fmt.Errorf("config: unknown device type %q, want tun or tap", s)
	}
}

// BuildAuthAlgo validates the -a/-b flags. The pipeline always derives a
// satp.AuthAlgo per connection from its KeyDerivation (spec §1: "specific
// crypto primitive implementations" are out of scope, but the algorithm
// itself — HMAC-SHA1 — is fixed by the spec, not pluggable); this only
// rejects an unrecognized name or an out-of-range tag length at startup.
func (c *Config) BuildAuthAlgo() error {
	switch strings.ToLower(c.AuthAlgo) {
	case "", "hmac-sha1":
		if c.TagLength < 0 || c.TagLength > 20 {
			return fmt.Errorf("config: auth tag length must be 0..20, got %d", c.TagLength)
		}
		return nil
	default:
		return fmt.Errorf("config: unknown auth algorithm %q, only hmac-sha1 is implemented", c.AuthAlgo)
	}
}

// BuildCipher validates the -c flag. Like BuildAuthAlgo, the pipeline
// always derives satp.Cipher (AES-CTR, spec-fixed) per connection; this
// only validates the name.
func (c *Config) BuildCipher() error {
	switch strings.ToLower(c.Cipher) {
	case "", "aes-ctr":
		return nil
	default:
		return fmt.Errorf("config: unknown cipher %q, only aes-ctr is implemented", c.Cipher)
	}
}
