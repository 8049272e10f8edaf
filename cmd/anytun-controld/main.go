// Command anytun-controld serves a pre-built JSON connection file over the
// sync TCP protocol to every connecting cluster member (spec §6). It runs
// no packet pipeline of its own; it only answers sync handshakes from the
// file's static state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"anytun/infrastructure/config"
	"anytun/infrastructure/connection"
	"anytun/infrastructure/logging"
	"anytun/infrastructure/routing"
	"anytun/infrastructure/signal"
	"anytun/infrastructure/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "anytun-controld:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("anytun-controld", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "path to the JSON connection file to serve")
	bindAddr := fs.StringP("sync-interface", "I", "0.0.0.0", "sync TCP bind address")
	bindPort := fs.Uint16P("sync-port", "S", 2323, "sync TCP bind port")
	logTargets := fs.StringArrayP("log", "L", nil, "log target, repeatable")
	debug := fs.BoolP("debug", "U", false, "enable debug logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("anytun-controld: -f/--file is required")
	}

	logger, err := logging.New(*logTargets, *debug)
	if err != nil {
		return err
	}

	cf, err := config.LoadFile(*file)
	if err != nil {
		return err
	}
	connRecs, routeRecs, err := cf.SyncRecords()
	if err != nil {
		return err
	}

	conns := connection.NewList()
	for _, rec := range connRecs {
		if err := sync.ApplyConnectionRecord(conns, rec); err != nil {
			return fmt.Errorf("anytun-controld: connection mux=%d: %w", rec.Mux, err)
		}
	}
	routes := routing.NewTable()
	for _, rec := range routeRecs {
		routes.AddRoute(rec.Prefix, rec.Mux)
	}

	hub := sync.NewHub(conns, routes, logger)
	addr := fmt.Sprintf("%s:%d", *bindAddr, *bindPort)
	srv, err := sync.Listen(hub, addr)
	if err != nil {
		return err
	}

	ctrl := signal.NewController()
	defer ctrl.Stop()
	logger.Printf("anytun-controld: serving %s on %s", *file, srv.Addr())
	return srv.Run(ctrl.Context())
}
