package satp

import "errors"

var (
	// ErrConfig is returned for invalid key lengths or algorithm
	// configuration (spec §7 ConfigError).
	ErrConfig = errors.New("satp: invalid configuration")
	// ErrShortOutput is returned when a caller-supplied buffer cannot hold
	// the requested keystream length.
	ErrShortOutput = errors.New("satp: output buffer too short")
)
