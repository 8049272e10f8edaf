package sync

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Server accepts inbound sync connections on one TCP listener, one per
// cluster member (spec §4.8).
type Server struct {
	hub *Hub
	ln  net.Listener
}

// Listen binds bindAddr and returns a Server ready to Run.
func Listen(hub *Hub, bindAddr string) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("sync: listen %s: %w", bindAddr, err)
	}
	return &Server{hub: hub, ln: ln}, nil
}

// Addr returns the listener's bound address, useful when bindAddr used
// port 0 in tests.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Run accepts connections and hands each to the hub until ctx is
// canceled or Accept fails for another reason.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sync: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.hub.serve(ctx, conn)
		}()
	}
}
