package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/keyfile"
)

var (
	// ErrConnection is returned at construction when the database cannot be reached or authenticated against.
	ErrConnection = errors.New("session storage unreachable")
	// ErrStorage wraps a statement or transaction failure during a lifecycle operation.
	ErrStorage = errors.New("session storage failure")
	// ErrDecryption is returned when a stored ciphertext fails authentication or is malformed.
	ErrDecryption = errors.New("session ciphertext rejected")
	// ErrSessionNotFound is returned by Load when no row exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptySessionID is returned for a zero-length session id.
	ErrEmptySessionID = errors.New("empty session id")
	// ErrSessionIDTooLong is returned for ids longer than the id column.
	ErrSessionIDTooLong = errors.New("session id too long")
	// ErrSessionTooLarge is returned when a payload exceeds the configured maximum.
	ErrSessionTooLarge = errors.New("session payload too large")
	// ErrInvalidMaxLifetime is returned for a negative gc threshold.
	ErrInvalidMaxLifetime = errors.New("invalid gc max lifetime")
	// ErrSweepInProgress is returned by Sweep when another process holds the gc lease.
	ErrSweepInProgress = errors.New("gc sweep running elsewhere")
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("session store closed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid session store config")
	// ErrNilDB is returned by New without a database handle.
	ErrNilDB = errors.New("nil database handle")
	// ErrNilKey is returned by New without an encryption key.
	ErrNilKey = errors.New("nil encryption key")

	// ErrKeyFormat is returned when the key file content does not decode.
	ErrKeyFormat = keyfile.ErrKeyFormat
	// ErrKeyIO is returned when the key file is missing, unreadable, or unsafe.
	ErrKeyIO = keyfile.ErrKeyIO
)

// OpError records the lifecycle operation and session behind a failure.
// Session holds a fingerprint of the id, never the id itself.
type OpError struct {
	Op      string
	Session string
	Err     error
}

func (e *OpError) Error() string {
	if e.Session == "" {
		return "goSession: " + e.Op + ": " + e.Err.Error()
	}
	return "goSession: " + e.Op + " " + e.Session + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}
