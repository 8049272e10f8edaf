// Package netbind constructs the UDP sockets the transport plane reads and
// writes on (spec §4.7). It wraps net.UDPConn with golang.org/x/net/ipv4 and
// golang.org/x/net/ipv6 packet connections so a socket bound to a wildcard or
// anycast address replies from the same local address a peer's packet
// arrived on, rather than whatever the kernel's default route would pick.
package netbind

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"anytun/application"
)

// Socket is a UDP socket with per-peer local-address memory for outbound
// replies. It implements application.UDPSocket.
type Socket struct {
	conn *net.UDPConn
	pc4  *ipv4.PacketConn
	pc6  *ipv6.PacketConn
	is4  bool

	mu       sync.Mutex
	localFor map[netip.AddrPort]netip.Addr
}

// Bind opens a UDP socket on laddr. The network ("udp4" or "udp6") is chosen
// from laddr's address family.
func Bind(laddr netip.AddrPort) (*Socket, error) {
	network := "udp6"
	is4 := laddr.Addr().Is4() || laddr.Addr().Is4In6()
	if is4 {
		network = "udp4"
	}

	conn, err := net.ListenUDP(network, net.UDPAddrFromAddrPort(laddr))
	if err != nil {
		return nil, fmt.Errorf("netbind: listen %s %s: %w", network, laddr, err)
	}

	s := &Socket{
		conn:     conn,
		is4:      is4,
		localFor: make(map[netip.AddrPort]netip.Addr),
	}

	if is4 {
		s.pc4 = ipv4.NewPacketConn(conn)
		if err := s.pc4.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netbind: set ipv4 control message: %w", err)
		}
	} else {
		s.pc6 = ipv6.NewPacketConn(conn)
		if err := s.pc6.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netbind: set ipv6 control message: %w", err)
		}
	}

	return s, nil
}

// LocalAddr returns the socket's bound address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// ReadFromUDPAddrPort reads one datagram. When the kernel reports which
// local address it arrived on, that address is remembered for the sending
// peer so WriteToUDPAddrPort can reply from the same address.
func (s *Socket) ReadFromUDPAddrPort(p []byte) (int, netip.AddrPort, error) {
	if s.is4 {
		return s.readv4(p)
	}
	return s.readv6(p)
}

func (s *Socket) readv4(p []byte) (int, netip.AddrPort, error) {
	n, cm, src, err := s.pc4.ReadFrom(p)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	addr, aerr := addrPortFromNetAddr(src)
	if aerr != nil {
		return n, netip.AddrPort{}, aerr
	}
	if cm != nil {
		if dst, ok := netip.AddrFromSlice(cm.Dst); ok {
			s.remember(addr, dst.Unmap())
		}
	}
	return n, addr, nil
}

func (s *Socket) readv6(p []byte) (int, netip.AddrPort, error) {
	n, cm, src, err := s.pc6.ReadFrom(p)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	addr, aerr := addrPortFromNetAddr(src)
	if aerr != nil {
		return n, netip.AddrPort{}, aerr
	}
	if cm != nil {
		if dst, ok := netip.AddrFromSlice(cm.Dst); ok {
			s.remember(addr, dst.Unmap())
		}
	}
	return n, addr, nil
}

// WriteToUDPAddrPort writes p to addr. If a local address was recorded for
// addr (from a prior read with a control message), it is set as the
// datagram's source.
func (s *Socket) WriteToUDPAddrPort(p []byte, addr netip.AddrPort) (int, error) {
	local, ok := s.recalled(addr)
	dst := net.UDPAddrFromAddrPort(addr)

	if s.is4 {
		var cm *ipv4.ControlMessage
		if ok {
			cm = &ipv4.ControlMessage{Src: local.AsSlice()}
		}
		return s.pc4.WriteTo(p, cm, dst)
	}
	var cm *ipv6.ControlMessage
	if ok {
		cm = &ipv6.ControlMessage{Src: local.AsSlice()}
	}
	return s.pc6.WriteTo(p, cm, dst)
}

// Close closes the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

func (s *Socket) remember(peer netip.AddrPort, local netip.Addr) {
	s.mu.Lock()
	s.localFor[peer] = local
	s.mu.Unlock()
}

func (s *Socket) recalled(peer netip.AddrPort) (netip.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.localFor[peer]
	return addr, ok
}

func addrPortFromNetAddr(a net.Addr) (netip.AddrPort, error) {
	udpAddr, ok := a.(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("netbind: unexpected address type %T", a)
	}
	return udpAddr.AddrPort(), nil
}

var _ application.UDPSocket = (*Socket)(nil)
