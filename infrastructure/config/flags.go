// Package config parses the CLI surface spec §6 describes for the data
// plane (anytun), the config emitter (anytun-config) and the control
// daemon (anytun-controld), and builds the cryptographic/network material
// the rest of the process needs from it.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"anytun/application"
	"anytun/domain/prefix"
)

// RouteFlag is one `-R prefix:mux` route given on the command line.
type RouteFlag struct {
	Prefix prefix.NetworkPrefix
	Mux    uint16
}

// Config is the parsed form of anytun's data-plane CLI surface.
type Config struct {
	LocalInterface string // -i
	LocalPort      uint16 // -p

	RemoteHost string // -r
	RemotePort uint16 // -o

	DeviceName string // -d
	DeviceType string // -t: "tun" or "tap"

	IfconfigAddr string // -n, "addr/prefixlen"

	RouteSpecs []string    // -R, repeatable, raw "prefix:mux" strings
	Routes     []RouteFlag // parsed form, populated by Parse

	SenderID uint16 // -s
	Mux      uint16 // -m
	Window   uint32 // -w

	Cipher        string // -c: "aes-ctr"
	AuthAlgo      string // -a: "hmac-sha1"
	TagLength     int    // -b
	KDF           string // -k: "satp" (a passphrase is given with -E)
	Role          string // -e: "left" or "right"
	Passphrase    string // -E
	MasterKeyHex  string // -K
	MasterSaltHex string // -A
	KeyLengthBits int    // key length in bits; default 128

	SyncBindAddr string   // -I
	SyncBindPort uint16   // -S
	SyncPeers    []string // -M, repeatable host:port

	ExitDevice string // -x, exit interface for infrastructure/kernelroute NAT/forwarding

	LogTargets []string // -L, repeatable
	Debug      bool     // -U
}

// NewFlagSet registers every spec §6 data-plane flag on fs.
func NewFlagSet(fs *pflag.FlagSet) *Config {
	c := &Config{}

	fs.StringVarP(&c.LocalInterface, "interface", "i", "0.0.0.0", "local bind address")
	fs.Uint16VarP(&c.LocalPort, "port", "p", 4865, "local UDP port")

	fs.StringVarP(&c.RemoteHost, "remote-host", "r", "", "remote peer host or address")
	fs.Uint16VarP(&c.RemotePort, "remote-port", "o", 4865, "remote peer UDP port")

	fs.StringVarP(&c.DeviceName, "dev", "d", "anytun0", "tun/tap device name")
	fs.StringVarP(&c.DeviceType, "type", "t", "tun", "device type: tun or tap")

	fs.StringVarP(&c.IfconfigAddr, "ifconfig", "n", "", "device address, addr/prefixlen")

	fs.StringArrayVarP(&c.RouteSpecs, "route", "R", nil, "route prefix:mux, repeatable")

	fs.Uint16VarP(&c.SenderID, "sender-id", "s", 0, "sender id")
	fs.Uint16VarP(&c.Mux, "mux", "m", 0, "multiplex id")
	fs.Uint32VarP(&c.Window, "window", "w", 100, "sequence window size")

	fs.StringVarP(&c.Cipher, "cipher", "c", "aes-ctr", "cipher: aes-ctr")
	fs.StringVarP(&c.AuthAlgo, "auth-algo", "a", "hmac-sha1", "auth algorithm: hmac-sha1")
	fs.IntVarP(&c.TagLength, "auth-tag-length", "b", 10, "auth tag length in bytes")
	fs.StringVarP(&c.KDF, "kd-prf", "k", "satp", "key derivation: satp")
	fs.StringVarP(&c.Role, "role", "e", "left", "keying role: left or right")
	fs.StringVarP(&c.Passphrase, "passphrase", "E", "", "derive master key/salt from a passphrase")
	fs.StringVarP(&c.MasterKeyHex, "key", "K", "", "master key, hex-encoded")
	fs.StringVarP(&c.MasterSaltHex, "salt", "A", "", "master salt, hex-encoded (14 bytes)")
	fs.IntVar(&c.KeyLengthBits, "key-length", 128, "master key length in bits: 128, 192 or 256")

	fs.StringVarP(&c.SyncBindAddr, "sync-interface", "I", "0.0.0.0", "sync TCP bind address")
	fs.Uint16VarP(&c.SyncBindPort, "sync-port", "S", 2323, "sync TCP bind port")
	fs.StringArrayVarP(&c.SyncPeers, "sync-peer", "M", nil, "sync peer host:port, repeatable")

	fs.StringVarP(&c.ExitDevice, "exit-device", "x", "", "exit interface for kernel NAT/forwarding; enables infrastructure/kernelroute mirroring when set")

	fs.StringArrayVarP(&c.LogTargets, "log", "L", nil, "log target: stdout, stderr, syslog, file:<path>, repeatable")
	fs.BoolVarP(&c.Debug, "debug", "U", false, "enable debug logging")

	return c
}

// Parse registers anytun's flags on a fresh FlagSet, parses args, and
// resolves RouteSpecs into Routes.
func Parse(progName string, args []string) (*Config, error) {
	fs := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	c := NewFlagSet(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for _, spec := range c.RouteSpecs {
		r, err := parseRouteFlag(spec)
		if err != nil {
			return nil, fmt.Errorf("config: route %q: %w", spec, err)
		}
		c.Routes = append(c.Routes, r)
	}
	return c, nil
}

func parseRouteFlag(spec string) (RouteFlag, error) {
	// Split at the last colon: IPv6 prefixes contain colons themselves.
	i := strings.LastIndex(spec, ":")
	if i < 0 {
		return RouteFlag{}, fmt.Errorf("expected prefix:mux")
	}
	mux, err := strconv.ParseUint(spec[i+1:], 10, 16)
	if err != nil {
		return RouteFlag{}, fmt.Errorf("invalid mux: %w", err)
	}
	p, err := ParseCIDR(spec[:i])
	if err != nil {
		return RouteFlag{}, err
	}
	return RouteFlag{Prefix: p, Mux: uint16(mux)}, nil
}

// RoleFromFlag maps the -e flag value to application.Role.
func RoleFromFlag(s string) (application.Role, error) {
	switch strings.ToLower(s) {
	case "left":
		return application.RoleLeft, nil
	case "right":
		return application.RoleRight, nil
	default:
		return 0, fmt.Errorf("config: unknown role %q, want left or right", s)
	}
}
