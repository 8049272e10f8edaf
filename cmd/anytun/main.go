// Command anytun is the SATP data-plane daemon: it opens a TUN/TAP device
// and a UDP socket, wires them together through the packet pipeline, and
// optionally joins a sync cluster and mirrors routes into the kernel.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"runtime"

	"anytun/application"
	"anytun/infrastructure/config"
	"anytun/infrastructure/connection"
	"anytun/infrastructure/kernelroute"
	"anytun/infrastructure/logging"
	"anytun/infrastructure/netbind"
	"anytun/infrastructure/pipeline"
	"anytun/infrastructure/resolve"
	"anytun/infrastructure/signal"
	"anytun/infrastructure/sync"
	"anytun/infrastructure/tun"
)

const defaultMTU = 1400

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "anytun:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse("anytun", os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.BuildCipher(); err != nil {
		return err
	}
	if err := cfg.BuildAuthAlgo(); err != nil {
		return err
	}
	deviceType, err := config.BuildDeviceType(cfg.DeviceType)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogTargets, cfg.Debug)
	if err != nil {
		return err
	}

	ctrl := signal.NewController()
	defer ctrl.Stop()
	ctx := ctrl.Context()

	kd, err := cfg.BuildKeyDerivation()
	if err != nil {
		return err
	}
	conns := connection.NewList()
	routes := cfg.BuildRoutingTable()

	tmpl := cfg.BuildConnectionParam(kd)
	var autoRegister *application.ConnectionParam
	if cfg.RemoteHost != "" {
		remote, rerr := resolveRemote(ctx, cfg.RemoteHost, cfg.RemotePort)
		if rerr != nil {
			return rerr
		}
		tmpl.RemoteEndpoint = remote
		conns.Add(cfg.Mux, tmpl)
	} else {
		// No static peer configured: accept the first inbound datagram for
		// an unknown mux as an auto-registration (spec §4.7 step 3), using
		// this connection's keying material as the template.
		t := tmpl
		autoRegister = &t
	}

	dev, err := tun.Open(cfg.DeviceName, defaultMTU, defaultMTU)
	if err != nil {
		return fmt.Errorf("anytun: opening %s device %q: %w", cfg.DeviceType, cfg.DeviceName, err)
	}
	defer dev.Close()

	localAddr, err := resolveRemote(ctx, cfg.LocalInterface, cfg.LocalPort)
	if err != nil {
		return fmt.Errorf("anytun: local bind address: %w", err)
	}
	sock, err := netbind.Bind(localAddr)
	if err != nil {
		return fmt.Errorf("anytun: binding udp socket: %w", err)
	}
	defer sock.Close()

	var broadcaster application.SyncBroadcaster
	if cfg.SyncBindPort != 0 || len(cfg.SyncPeers) > 0 {
		hub := sync.NewHub(conns, routes, logger)
		broadcaster = hub
		if cfg.SyncBindPort != 0 {
			bindAddr := netip.AddrPortFrom(mustParseAddr(cfg.SyncBindAddr), cfg.SyncBindPort).String()
			srv, lerr := sync.Listen(hub, bindAddr)
			if lerr != nil {
				return lerr
			}
			go func() {
				if err := srv.Run(ctx); err != nil {
					ctrl.Fatal(err)
				}
			}()
		}
		for _, peer := range cfg.SyncPeers {
			go hub.DialPeer(ctx, peer)
		}
	}

	if cfg.ExitDevice != "" {
		mirror, merr := kernelroute.New(cfg.DeviceName, cfg.ExitDevice)
		if merr != nil {
			logger.Printf("anytun: kernel route mirror disabled: %v", merr)
		} else {
			defer mirror.Close()
			if err := mirror.EnableForwarding(); err != nil {
				logger.Printf("anytun: kernel route mirror: enabling forwarding: %v", err)
			}
			if routes != nil {
				if err := mirror.SyncRoutes(routes.Each); err != nil {
					logger.Printf("anytun: kernel route mirror: %v", err)
				}
			}
		}
	}

	p := pipeline.New(pipeline.Config{
		Tun:                  dev,
		Socket:               sock,
		Conns:                conns,
		Routes:               routes,
		Broadcaster:          broadcaster,
		Logger:               logger,
		DeviceType:           deviceType,
		MaxPacketLength:      defaultMTU,
		SenderID:             cfg.SenderID,
		TagLength:            cfg.TagLength,
		AutoRegisterTemplate: autoRegister,
		NumCPU:               runtime.NumCPU(),
	})

	if err := p.Run(ctx); err != nil {
		ctrl.Fatal(err)
		return err
	}
	return ctrl.Err()
}

func resolveRemote(ctx context.Context, host string, port uint16) (netip.AddrPort, error) {
	r := resolve.New()
	addrs, err := r.ResolveUDP(ctx, host, port, application.AddressFamilyAny)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return addrs[0], nil
}

func mustParseAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.IPv4Unspecified()
	}
	return a
}
