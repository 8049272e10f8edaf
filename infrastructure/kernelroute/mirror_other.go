//go:build !linux

package kernelroute

import (
	"errors"

	"anytun/domain/prefix"
)

// ErrUnsupported is returned by New and by every Mirror operation except
// Close (which returns nil) on platforms without netlink/nftables. Kernel route mirroring is a Linux-only convenience;
// callers that construct a Mirror on another platform get a clear error
// instead of a silent no-op.
var ErrUnsupported = errors.New("kernelroute: not supported on this platform")

// Mirror is the non-Linux stand-in for the nftables-backed mirror.
type Mirror struct{}

func New(string, string) (*Mirror, error) { return nil, ErrUnsupported }

func (*Mirror) Close() error                  { return nil }
func (*Mirror) EnableForwarding() error       { return ErrUnsupported }
func (*Mirror) DisableForwarding() error      { return ErrUnsupported }
func (*Mirror) AddRoute(prefix.NetworkPrefix) error    { return ErrUnsupported }
func (*Mirror) DeleteRoute(prefix.NetworkPrefix) error { return ErrUnsupported }
func (*Mirror) SyncRoutes(func(func(prefix.NetworkPrefix, uint16))) error {
	return ErrUnsupported
}
