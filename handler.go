package goSession

import (
	"context"
	"errors"
)

// SaveHandler is the lifecycle contract a session framework drives: open and
// close around a request, read and write the payload, destroy on logout, and
// gc on a fraction of requests.
//
// Implementations never return errors from these methods. Failures collapse to
// an empty payload from Read and false from the mutating calls, because the
// framework has no way to handle anything richer at these call sites.
type SaveHandler interface {
	Open(savePath, sessionName string) bool
	Close() bool
	Read(ctx context.Context, id string) []byte
	Write(ctx context.Context, id string, payload []byte) bool
	Destroy(ctx context.Context, id string) bool
	GC(ctx context.Context, maxLifetime int64) bool
}

var _ SaveHandler = (*Store)(nil)

// Open is a no-op. Connection setup and key loading happen in New/Build so
// that their failures cannot be swallowed by a framework that ignores Open's
// result.
func (s *Store) Open(savePath, sessionName string) bool {
	return true
}

// Close releases the store. Later calls fail. The database handle is closed
// only when the store opened it (Builder.Build). Close always reports success.
func (s *Store) Close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return true
	}
	s.audit.Close()
	if s.ownsDB {
		if err := s.db.Close(); err != nil {
			s.logger.Printf("goSession: close database: %v", err)
		}
	}
	return true
}

// Read returns the payload for id, or an empty payload when there is no
// session, the ciphertext fails authentication, or the database errors.
// The three causes are logged and counted separately; see Load for the typed
// variant.
func (s *Store) Read(ctx context.Context, id string) []byte {
	payload, err := s.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			s.logger.Printf("%v", err)
		}
		return []byte{}
	}
	return payload
}

// Write stores payload under id, reporting false if the transaction did not commit.
func (s *Store) Write(ctx context.Context, id string, payload []byte) bool {
	if err := s.Save(ctx, id, payload); err != nil {
		s.logger.Printf("%v", err)
		return false
	}
	return true
}

// Destroy removes the session for id. Removing an absent session succeeds.
func (s *Store) Destroy(ctx context.Context, id string) bool {
	if err := s.Delete(ctx, id); err != nil {
		s.logger.Printf("%v", err)
		return false
	}
	return true
}

// GC removes sessions not written for more than maxLifetime seconds. A sweep
// skipped because another process holds the gc lease counts as success.
func (s *Store) GC(ctx context.Context, maxLifetime int64) bool {
	_, err := s.Sweep(ctx, lifetimeDuration(maxLifetime))
	switch {
	case err == nil, errors.Is(err, ErrSweepInProgress):
		return true
	default:
		s.logger.Printf("%v", err)
		return false
	}
}
