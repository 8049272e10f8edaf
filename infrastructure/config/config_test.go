package config

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"anytun/application"
	"anytun/domain/prefix"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse("anytun", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.LocalPort != 4865 {
		t.Errorf("LocalPort = %d, want 4865", c.LocalPort)
	}
	if c.Cipher != "aes-ctr" {
		t.Errorf("Cipher = %q, want aes-ctr", c.Cipher)
	}
	if c.Role != "left" {
		t.Errorf("Role = %q, want left", c.Role)
	}
	if len(c.Routes) != 0 {
		t.Errorf("Routes = %v, want none", c.Routes)
	}
	if c.ExitDevice != "" {
		t.Errorf("ExitDevice = %q, want empty (kernel route mirroring disabled by default)", c.ExitDevice)
	}
}

func TestParse_ExitDevice(t *testing.T) {
	c, err := Parse("anytun", []string{"-x", "eth0"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.ExitDevice != "eth0" {
		t.Errorf("ExitDevice = %q, want eth0", c.ExitDevice)
	}
}

func TestParse_Routes(t *testing.T) {
	c, err := Parse("anytun", []string{"-R", "10.0.0.0/24:1", "-R", "fd00::/64:2"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(c.Routes) != 2 {
		t.Fatalf("Routes = %v, want 2 entries", c.Routes)
	}
	if c.Routes[0].Mux != 1 || c.Routes[1].Mux != 2 {
		t.Errorf("Routes muxes = %d, %d, want 1, 2", c.Routes[0].Mux, c.Routes[1].Mux)
	}
}

func TestParse_BadRouteSpec(t *testing.T) {
	cases := []string{"10.0.0.0/24", "10.0.0.0/24:notanumber", "not-a-prefix:1"}
	for _, spec := range cases {
		if _, err := Parse("anytun", []string{"-R", spec}); err == nil {
			t.Errorf("Parse(-R %q) succeeded, want error", spec)
		}
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	if _, err := Parse("anytun", []string{"--nope"}); err == nil {
		t.Error("Parse with unknown flag succeeded, want error")
	}
}

func TestParseCIDR(t *testing.T) {
	p, err := ParseCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	if p.Family != prefix.FamilyIPv4 {
		t.Errorf("Family = %v, want IPv4", p.Family)
	}
	if p.Length != 24 {
		t.Errorf("Length = %d, want 24", p.Length)
	}

	if _, err := ParseCIDR("not-a-prefix"); err == nil {
		t.Error("ParseCIDR(bad) succeeded, want error")
	}
}

func TestParseCIDR_IPv6(t *testing.T) {
	p, err := ParseCIDR("fd00::/64")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	if len(p.Addr) != 16 {
		t.Errorf("Addr length = %d, want 16", len(p.Addr))
	}
}

func TestRoleFromFlag(t *testing.T) {
	if r, err := RoleFromFlag("left"); err != nil || r != application.RoleLeft {
		t.Errorf("RoleFromFlag(left) = %v, %v", r, err)
	}
	if r, err := RoleFromFlag("RIGHT"); err != nil || r != application.RoleRight {
		t.Errorf("RoleFromFlag(RIGHT) = %v, %v", r, err)
	}
	if _, err := RoleFromFlag("middle"); err == nil {
		t.Error("RoleFromFlag(middle) succeeded, want error")
	}
}

func TestBuildKeyDerivation_Passphrase(t *testing.T) {
	c := &Config{Role: "left", KDF: "satp", Passphrase: "correct horse battery staple", KeyLengthBits: 128}
	kd, err := c.BuildKeyDerivation()
	if err != nil {
		t.Fatalf("BuildKeyDerivation: %v", err)
	}
	if kd.KeyLength() != 128 {
		t.Errorf("KeyLength = %d, want 128", kd.KeyLength())
	}
	if kd.Role() != application.RoleLeft {
		t.Errorf("Role = %v, want left", kd.Role())
	}
}

func TestBuildKeyDerivation_ExplicitKey(t *testing.T) {
	key := hex.EncodeToString(make([]byte, 16))
	salt := hex.EncodeToString(make([]byte, 14))
	c := &Config{Role: "right", KDF: "satp", MasterKeyHex: key, MasterSaltHex: salt, KeyLengthBits: 128}
	kd, err := c.BuildKeyDerivation()
	if err != nil {
		t.Fatalf("BuildKeyDerivation: %v", err)
	}
	if kd.Role() != application.RoleRight {
		t.Errorf("Role = %v, want right", kd.Role())
	}
}

func TestBuildKeyDerivation_BadHex(t *testing.T) {
	c := &Config{Role: "left", KDF: "satp", MasterKeyHex: "zz", MasterSaltHex: "00", KeyLengthBits: 128}
	if _, err := c.BuildKeyDerivation(); err == nil {
		t.Error("BuildKeyDerivation with bad hex succeeded, want error")
	}
}

func TestBuildKeyDerivation_UnknownKDF(t *testing.T) {
	c := &Config{Role: "left", KDF: "scrypt"}
	if _, err := c.BuildKeyDerivation(); err == nil {
		t.Error("BuildKeyDerivation with unknown KDF succeeded, want error")
	}
}

func TestBuildRoutingTable(t *testing.T) {
	c := &Config{}
	if rt := c.BuildRoutingTable(); rt != nil {
		t.Error("BuildRoutingTable with no routes = non-nil, want nil")
	}

	p, err := ParseCIDR("10.1.0.0/16")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	c.Routes = []RouteFlag{{Prefix: p, Mux: 7}}
	rt := c.BuildRoutingTable()
	if rt == nil {
		t.Fatal("BuildRoutingTable with routes = nil")
	}
	if mux, err := rt.GetRoute(p.Family, p.Addr); err != nil || mux != 7 {
		t.Errorf("GetRoute = %d, %v, want 7, nil", mux, err)
	}
}

func TestBuildDeviceType(t *testing.T) {
	if dt, err := BuildDeviceType("tun"); err != nil || dt != application.DeviceTypeTun {
		t.Errorf("BuildDeviceType(tun) = %v, %v", dt, err)
	}
	if dt, err := BuildDeviceType("TAP"); err != nil || dt != application.DeviceTypeTap {
		t.Errorf("BuildDeviceType(TAP) = %v, %v", dt, err)
	}
	if _, err := BuildDeviceType("ppp"); err == nil {
		t.Error("BuildDeviceType(ppp) succeeded, want error")
	}
}

func TestBuildAuthAlgo(t *testing.T) {
	ok := &Config{AuthAlgo: "hmac-sha1", TagLength: 10}
	if err := ok.BuildAuthAlgo(); err != nil {
		t.Errorf("BuildAuthAlgo: %v", err)
	}

	badLen := &Config{AuthAlgo: "hmac-sha1", TagLength: 99}
	if err := badLen.BuildAuthAlgo(); err == nil {
		t.Error("BuildAuthAlgo with out-of-range tag length succeeded, want error")
	}

	unknown := &Config{AuthAlgo: "hmac-sha256"}
	if err := unknown.BuildAuthAlgo(); err == nil {
		t.Error("BuildAuthAlgo(hmac-sha256) succeeded, want error")
	}

	nullAlgo := &Config{AuthAlgo: "null"}
	if err := nullAlgo.BuildAuthAlgo(); err == nil {
		t.Error("BuildAuthAlgo(null) succeeded, want error: null is not an accepted algorithm")
	}
}

func TestBuildCipher(t *testing.T) {
	ok := &Config{Cipher: "aes-ctr"}
	if err := ok.BuildCipher(); err != nil {
		t.Errorf("BuildCipher: %v", err)
	}

	unknown := &Config{Cipher: "chacha20"}
	if err := unknown.BuildCipher(); err == nil {
		t.Error("BuildCipher(chacha20) succeeded, want error")
	}

	nullCipher := &Config{Cipher: "null"}
	if err := nullCipher.BuildCipher(); err == nil {
		t.Error("BuildCipher(null) succeeded, want error: null is not an accepted cipher")
	}
}

func TestConnectionFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anytun.json")

	f := &ConnectionFile{
		Connections: []ConnectionDescriptor{{
			Mux:           1,
			Role:          "left",
			KeyLengthBits: 128,
			MasterKeyHex:  hex.EncodeToString(make([]byte, 16)),
			MasterSaltHex: hex.EncodeToString(make([]byte, 14)),
			WindowSize:    100,
			RemoteAddress: "203.0.113.1",
			RemotePort:    4865,
		}},
		Routes: []RouteDescriptor{{Prefix: "10.0.0.0/24", Mux: 1}},
	}
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	conns, routes, err := loaded.SyncRecords()
	if err != nil {
		t.Fatalf("SyncRecords: %v", err)
	}
	if len(conns) != 1 || conns[0].Mux != 1 || conns[0].Role != application.RoleLeft {
		t.Errorf("conns = %+v", conns)
	}
	if len(routes) != 1 || routes[0].Mux != 1 {
		t.Errorf("routes = %+v", routes)
	}
}

func TestConnectionFile_BadHex(t *testing.T) {
	f := &ConnectionFile{Connections: []ConnectionDescriptor{{
		Mux: 1, Role: "left", MasterKeyHex: "zz", MasterSaltHex: "00",
	}}}
	if _, _, err := f.SyncRecords(); err == nil {
		t.Error("SyncRecords with bad hex succeeded, want error")
	}
}

func TestConnectionFile_BadRole(t *testing.T) {
	f := &ConnectionFile{Connections: []ConnectionDescriptor{{
		Mux: 1, Role: "up",
	}}}
	if _, _, err := f.SyncRecords(); err == nil {
		t.Error("SyncRecords with bad role succeeded, want error")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/anytun.json"); err == nil {
		t.Error("LoadFile(missing) succeeded, want error")
	}
}
