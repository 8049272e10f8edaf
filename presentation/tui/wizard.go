// Package tui implements the interactive anytun-config wizard: a sequence
// of bubbletea prompts that collect one connection's parameters into a
// config.ConnectionFile, which anytun-config emits as sync records (spec
// §6's "config emitter").
package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"anytun/infrastructure/config"
)

// runField drives a single-prompt bubbletea program to completion and
// returns its final value. Each wizard step gets its own short-lived
// tea.Program rather than one large state machine, following the
// teacher's pattern of standalone, single-purpose bubbletea models.
func runField(m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	return final, nil
}

// RunWizard walks the operator through building one ConnectionDescriptor
// and any routes, returning a ConnectionFile ready to Save.
func RunWizard() (*config.ConnectionFile, error) {
	role, err := runField(NewSelector("Keying role:", []string{"left", "right"}))
	if err != nil {
		return nil, err
	}
	roleChoice := role.(Selector).Choice()
	if roleChoice == "" {
		return nil, fmt.Errorf("tui: no role selected")
	}

	muxField, err := runField(NewTextField("Multiplex id (-m):", "0", "0").
		WithValidate(validateUint16))
	if err != nil {
		return nil, err
	}
	mux, _ := strconv.ParseUint(muxField.(*TextField).Value(), 10, 16)

	passphrase, err := runField(NewTextField("Passphrase (leave empty to enter key/salt instead):", "", ""))
	if err != nil {
		return nil, err
	}

	desc := config.ConnectionDescriptor{
		Mux:           uint16(mux),
		Role:          roleChoice,
		KeyLengthBits: 128,
		WindowSize:    100,
	}

	if pass := passphrase.(*TextField).Value(); pass != "" {
		kd, derr := deriveFromPassphrase(pass, desc.KeyLengthBits)
		if derr != nil {
			return nil, derr
		}
		desc.MasterKeyHex = kd.keyHex
		desc.MasterSaltHex = kd.saltHex
	} else {
		keyField, kerr := runField(NewTextField("Master key, hex-encoded (-K):", "", "").
			WithValidate(validateHex))
		if kerr != nil {
			return nil, kerr
		}
		saltField, serr := runField(NewTextField("Master salt, hex-encoded, 14 bytes (-A):", "", "").
			WithValidate(validateHex))
		if serr != nil {
			return nil, serr
		}
		desc.MasterKeyHex = keyField.(*TextField).Value()
		desc.MasterSaltHex = saltField.(*TextField).Value()
	}

	remoteHost, err := runField(NewTextField("Remote host (optional, blank for auto-detect):", "", ""))
	if err != nil {
		return nil, err
	}
	desc.RemoteAddress = remoteHost.(*TextField).Value()
	if desc.RemoteAddress != "" {
		remotePort, perr := runField(NewTextField("Remote port:", "4865", "4865").WithValidate(validateUint16))
		if perr != nil {
			return nil, perr
		}
		port, _ := strconv.ParseUint(remotePort.(*TextField).Value(), 10, 16)
		desc.RemotePort = uint16(port)
	}

	routesField, err := runField(NewTextField("Routes, space-separated prefix:mux (optional):", "", ""))
	if err != nil {
		return nil, err
	}
	var routes []config.RouteDescriptor
	for _, spec := range strings.Fields(routesField.(*TextField).Value()) {
		// Split at the last colon: IPv6 prefixes contain colons themselves.
		i := strings.LastIndex(spec, ":")
		if i < 0 {
			return nil, fmt.Errorf("tui: invalid route %q, want prefix:mux", spec)
		}
		muxVal, perr := strconv.ParseUint(spec[i+1:], 10, 16)
		if perr != nil {
			return nil, fmt.Errorf("tui: invalid route mux %q: %w", spec, perr)
		}
		routes = append(routes, config.RouteDescriptor{Prefix: spec[:i], Mux: uint16(muxVal)})
	}

	return &config.ConnectionFile{
		Connections: []config.ConnectionDescriptor{desc},
		Routes:      routes,
	}, nil
}

func validateUint16(s string) error {
	if _, err := strconv.ParseUint(s, 10, 16); err != nil {
		return fmt.Errorf("must be a number 0..65535")
	}
	return nil
}

func validateHex(s string) error {
	if len(s)%2 != 0 {
		return fmt.Errorf("must be an even number of hex digits")
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fmt.Errorf("must be hex-encoded")
		}
	}
	return nil
}
