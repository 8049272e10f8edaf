// Command anytun-config emits sync-frame records describing one
// connection (and, optionally, its routes) to stdout (spec §6). The output
// is framed sync records, not the JSON connection file anytun-controld
// loads.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"anytun/application"
	"anytun/infrastructure/config"
	"anytun/infrastructure/sync"
	"anytun/presentation/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "anytun-config:", err)
		os.Exit(1)
	}
}

func run() error {
	conns, routes, err := collectRecords(os.Args[1:])
	if err != nil {
		return err
	}
	for _, rec := range conns {
		if err := sync.WriteFramedRecord(os.Stdout, sync.EncodeConnectionRecord(rec)); err != nil {
			return err
		}
	}
	for _, rec := range routes {
		if err := sync.WriteFramedRecord(os.Stdout, sync.EncodeRouteRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

// collectRecords builds the sync records for one connection, either from
// the interactive wizard (-I) or from the flag surface shared with anytun.
func collectRecords(args []string) ([]application.SyncConnectionRecord, []application.SyncRouteRecord, error) {
	peek := pflag.NewFlagSet("anytun-config", pflag.ContinueOnError)
	peek.ParseErrorsWhitelist.UnknownFlags = true
	interactive := peek.BoolP("interactive", "I", false, "build the connection with an interactive wizard instead of flags")
	_ = peek.Parse(args)

	if *interactive {
		file, err := tui.RunWizard()
		if err != nil {
			return nil, nil, err
		}
		return file.SyncRecords()
	}

	cfg, err := config.Parse("anytun-config", args)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.BuildCipher(); err != nil {
		return nil, nil, err
	}
	if err := cfg.BuildAuthAlgo(); err != nil {
		return nil, nil, err
	}
	kd, err := cfg.BuildKeyDerivation()
	if err != nil {
		return nil, nil, err
	}
	param := cfg.BuildConnectionParam(kd)

	conns := []application.SyncConnectionRecord{param.ToSyncRecord(cfg.Mux)}
	var routeRecs []application.SyncRouteRecord
	for _, r := range cfg.Routes {
		routeRecs = append(routeRecs, application.SyncRouteRecord{Prefix: r.Prefix, Mux: r.Mux})
	}
	return conns, routeRecs, nil
}
