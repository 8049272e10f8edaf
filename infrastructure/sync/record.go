package sync

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"anytun/application"
	"anytun/domain/prefix"
)

const (
	tokenConnection = "connection"
	tokenRoute      = "route"
)

// EncodeConnectionRecord exposes encodeConnectionRecord to callers outside
// the package that need a raw record payload without a Hub, such as
// anytun-config emitting records straight to stdout.
func EncodeConnectionRecord(rec application.SyncConnectionRecord) []byte {
	return encodeConnectionRecord(rec)
}

// EncodeRouteRecord exposes encodeRouteRecord the same way.
func EncodeRouteRecord(rec application.SyncRouteRecord) []byte {
	return encodeRouteRecord(rec)
}

// encodeConnectionRecord serializes the fields spec §4.8 lists for a
// "connection" record. RemoteAddress is written as "-" when empty so the
// field count survives a strings.Fields split.
func encodeConnectionRecord(rec application.SyncConnectionRecord) []byte {
	addr := rec.RemoteAddress
	if addr == "" {
		addr = "-"
	}
	return []byte(fmt.Sprintf("%s %d %d %d %s %s %d %d %s %d",
		tokenConnection, rec.Mux, rec.Role, rec.KeyLength,
		hex.EncodeToString(rec.MasterSalt), hex.EncodeToString(rec.MasterKey),
		rec.WindowSize, rec.NextSeqNr, addr, rec.RemotePort))
}

// encodeRouteRecord serializes the fields spec §4.8 lists for a "route"
// record.
func encodeRouteRecord(rec application.SyncRouteRecord) []byte {
	return []byte(fmt.Sprintf("%s %d %s %d %d",
		tokenRoute, rec.Prefix.Family, hex.EncodeToString(rec.Prefix.Addr), rec.Prefix.Length, rec.Mux))
}

// decodeRecord parses one record payload and reports which variant it is.
// Only one of connRec/routeRec is populated, per kind.
func decodeRecord(payload []byte) (kind application.SyncRecordKind, connRec application.SyncConnectionRecord, routeRec application.SyncRouteRecord, err error) {
	fields := strings.Fields(string(payload))
	if len(fields) == 0 {
		return 0, connRec, routeRec, fmt.Errorf("sync: empty record")
	}
	switch fields[0] {
	case tokenConnection:
		connRec, err = decodeConnectionRecord(fields[1:])
		return application.SyncRecordConnection, connRec, routeRec, err
	case tokenRoute:
		routeRec, err = decodeRouteRecord(fields[1:])
		return application.SyncRecordRoute, connRec, routeRec, err
	default:
		return 0, connRec, routeRec, fmt.Errorf("sync: unknown record type %q", fields[0])
	}
}

func decodeConnectionRecord(f []string) (application.SyncConnectionRecord, error) {
	var rec application.SyncConnectionRecord
	if len(f) != 9 {
		return rec, fmt.Errorf("sync: connection record has %d fields, want 9", len(f))
	}
	mux, err := strconv.ParseUint(f[0], 10, 16)
	if err != nil {
		return rec, fmt.Errorf("sync: connection mux: %w", err)
	}
	role, err := strconv.ParseUint(f[1], 10, 8)
	if err != nil {
		return rec, fmt.Errorf("sync: connection role: %w", err)
	}
	keyLength, err := strconv.Atoi(f[2])
	if err != nil {
		return rec, fmt.Errorf("sync: connection key_length: %w", err)
	}
	salt, err := hex.DecodeString(f[3])
	if err != nil {
		return rec, fmt.Errorf("sync: connection master_salt: %w", err)
	}
	key, err := hex.DecodeString(f[4])
	if err != nil {
		return rec, fmt.Errorf("sync: connection master_key: %w", err)
	}
	windowSize, err := strconv.ParseUint(f[5], 10, 32)
	if err != nil {
		return rec, fmt.Errorf("sync: connection window_size: %w", err)
	}
	nextSeqNr, err := strconv.ParseUint(f[6], 10, 32)
	if err != nil {
		return rec, fmt.Errorf("sync: connection next_seq_nr: %w", err)
	}
	addr := f[7]
	if addr == "-" {
		addr = ""
	}
	port, err := strconv.ParseUint(f[8], 10, 16)
	if err != nil {
		return rec, fmt.Errorf("sync: connection remote_port: %w", err)
	}

	rec.Mux = uint16(mux)
	rec.Role = application.Role(role)
	rec.KeyLength = keyLength
	rec.MasterSalt = salt
	rec.MasterKey = key
	rec.WindowSize = uint32(windowSize)
	rec.NextSeqNr = uint32(nextSeqNr)
	rec.RemoteAddress = addr
	rec.RemotePort = uint16(port)
	return rec, nil
}

func decodeRouteRecord(f []string) (application.SyncRouteRecord, error) {
	var rec application.SyncRouteRecord
	if len(f) != 4 {
		return rec, fmt.Errorf("sync: route record has %d fields, want 4", len(f))
	}
	family, err := strconv.ParseUint(f[0], 10, 8)
	if err != nil {
		return rec, fmt.Errorf("sync: route family: %w", err)
	}
	addr, err := hex.DecodeString(f[1])
	if err != nil {
		return rec, fmt.Errorf("sync: route addr: %w", err)
	}
	length, err := strconv.Atoi(f[2])
	if err != nil {
		return rec, fmt.Errorf("sync: route length: %w", err)
	}
	mux, err := strconv.ParseUint(f[3], 10, 16)
	if err != nil {
		return rec, fmt.Errorf("sync: route mux: %w", err)
	}
	p, err := prefix.New(prefix.Family(family), addr, length)
	if err != nil {
		return rec, fmt.Errorf("sync: route prefix: %w", err)
	}
	rec.Prefix = p
	rec.Mux = uint16(mux)
	return rec, nil
}
