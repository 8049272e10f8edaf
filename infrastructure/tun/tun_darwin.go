//go:build darwin

package tun

import (
	"encoding/binary"
	"syscall"
)

// utun devices require a 4-byte address-family header before each packet.
func readOffset() int  { return 4 }
func writeOffset() int { return 4 }

// prepareWriteHeader fills the 4-byte family header utun expects, derived
// from the IP version nibble of payload.
func prepareWriteHeader(header []byte, payload []byte) {
	family := uint32(syscall.AF_INET)
	if len(payload) > 0 && payload[0]>>4 == 6 {
		family = syscall.AF_INET6
	}
	binary.BigEndian.PutUint32(header, family)
}
