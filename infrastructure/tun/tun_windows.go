//go:build windows

package tun

// wintun carries raw IP packets with no extra header.
func readOffset() int  { return 0 }
func writeOffset() int { return 0 }

func prepareWriteHeader([]byte, []byte) {}
