package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"anytun/application"
)

// ConnectionFile is the JSON connection descriptor anytun-controld serves
// (spec §6's "pre-built config file") and the interactive wizard builds. It mirrors
// the sync record fields (spec §4.8) in a human-editable form.
type ConnectionFile struct {
	Connections []ConnectionDescriptor `json:"connections"`
	Routes      []RouteDescriptor      `json:"routes,omitempty"`
}

// ConnectionDescriptor is one connection's persisted state.
type ConnectionDescriptor struct {
	Mux           uint16 `json:"mux"`
	Role          string `json:"role"`
	KeyLengthBits int    `json:"key_length_bits"`
	MasterKeyHex  string `json:"master_key_hex"`
	MasterSaltHex string `json:"master_salt_hex"`
	WindowSize    uint32 `json:"window_size"`
	NextSeqNr     uint32 `json:"next_seq_nr"`
	RemoteAddress string `json:"remote_address,omitempty"`
	RemotePort    uint16 `json:"remote_port,omitempty"`
}

// RouteDescriptor is one persisted route.
type RouteDescriptor struct {
	Prefix string `json:"prefix"`
	Mux    uint16 `json:"mux"`
}

// LoadFile reads and parses a JSON connection file.
func LoadFile(path string) (*ConnectionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f ConnectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Save writes f to path as indented JSON.
func (f *ConnectionFile) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal connection file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// SyncRecords converts f into the sync records a Hub snapshot would push
// (spec §4.8's connection-then-route ordering).
func (f *ConnectionFile) SyncRecords() ([]application.SyncConnectionRecord, []application.SyncRouteRecord, error) {
	conns := make([]application.SyncConnectionRecord, 0, len(f.Connections))
	for _, d := range f.Connections {
		rec, err := d.toSyncRecord()
		if err != nil {
			return nil, nil, fmt.Errorf("config: connection mux=%d: %w", d.Mux, err)
		}
		conns = append(conns, rec)
	}

	routes := make([]application.SyncRouteRecord, 0, len(f.Routes))
	for _, r := range f.Routes {
		p, err := ParseCIDR(r.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("config: route %q: %w", r.Prefix, err)
		}
		routes = append(routes, application.SyncRouteRecord{Prefix: p, Mux: r.Mux})
	}
	return conns, routes, nil
}

func (d ConnectionDescriptor) toSyncRecord() (application.SyncConnectionRecord, error) {
	role, err := RoleFromFlag(d.Role)
	if err != nil {
		return application.SyncConnectionRecord{}, err
	}
	key, err := hex.DecodeString(d.MasterKeyHex)
	if err != nil {
		return application.SyncConnectionRecord{}, fmt.Errorf("master_key_hex: %w", err)
	}
	salt, err := hex.DecodeString(d.MasterSaltHex)
	if err != nil {
		return application.SyncConnectionRecord{}, fmt.Errorf("master_salt_hex: %w", err)
	}
	return application.SyncConnectionRecord{
		Mux:           d.Mux,
		Role:          role,
		KeyLength:     d.KeyLengthBits,
		MasterSalt:    salt,
		MasterKey:     key,
		WindowSize:    d.WindowSize,
		NextSeqNr:     d.NextSeqNr,
		RemoteAddress: d.RemoteAddress,
		RemotePort:    d.RemotePort,
	}, nil
}
