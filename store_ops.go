package goSession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/sqltx"
	"github.com/MrEthical07/goSession/schema"
)

// Load returns the decrypted payload stored for id.
//
// Failures are typed: ErrSessionNotFound when no row exists, ErrDecryption
// when the ciphertext fails authentication, ErrStorage when the query fails.
// Each is wrapped in an *OpError.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	defer s.observeLatency(time.Now())

	if err := s.usable(id); err != nil {
		return nil, opError("read", id, err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx, s.stmts.Select, id).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.Inc(MetricReadMiss)
		return nil, opError("read", id, ErrSessionNotFound)
	case err != nil:
		s.metrics.Inc(MetricStorageError)
		s.emit(ctx, audit.EventStorageFailure, id, err, map[string]string{"op": "read"})
		return nil, opError("read", id, fmt.Errorf("%w: %w", ErrStorage, err))
	}

	payload, err := openEnvelope(s.key, id, stored)
	if err != nil {
		s.metrics.Inc(MetricDecryptFailure)
		s.emit(ctx, audit.EventTamperSuspected, id, err, nil)
		return nil, opError("read", id, err)
	}

	s.metrics.Inc(MetricReadHit)
	return payload, nil
}

// Save seals payload and upserts it under id in one transaction. A new row is
// inserted for an unknown id; an existing row has its ciphertext replaced and
// updated_at advanced.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	defer s.observeLatency(time.Now())

	if err := s.usable(id); err != nil {
		s.metrics.Inc(MetricWriteFailure)
		return opError("write", id, err)
	}
	if len(payload) > s.maxPayload {
		s.metrics.Inc(MetricWriteFailure)
		return opError("write", id, fmt.Errorf("%w: %d > %d bytes", ErrSessionTooLarge, len(payload), s.maxPayload))
	}

	sealed, err := sealEnvelope(s.key, id, payload)
	if err != nil {
		s.metrics.Inc(MetricWriteFailure)
		return opError("write", id, err)
	}

	now := s.stmts.Dialect.TimeValue(s.now())
	_, err = sqltx.Exec(ctx, s.db, s.stmts.Upsert, id, sealed, now, now)
	if err != nil {
		s.metrics.Inc(MetricWriteFailure)
		s.metrics.Inc(MetricStorageError)
		s.emit(ctx, audit.EventStorageFailure, id, err, map[string]string{"op": "write"})
		return opError("write", id, fmt.Errorf("%w: %w", ErrStorage, err))
	}

	s.metrics.Inc(MetricWriteSuccess)
	return nil
}

// Delete removes the row for id in one transaction. Deleting an absent id
// succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.observeLatency(time.Now())

	if err := s.usable(id); err != nil {
		s.metrics.Inc(MetricDestroyFailure)
		return opError("destroy", id, err)
	}

	if _, err := sqltx.Exec(ctx, s.db, s.stmts.Delete, id); err != nil {
		s.metrics.Inc(MetricDestroyFailure)
		s.metrics.Inc(MetricStorageError)
		s.emit(ctx, audit.EventStorageFailure, id, err, map[string]string{"op": "destroy"})
		return opError("destroy", id, fmt.Errorf("%w: %w", ErrStorage, err))
	}

	s.metrics.Inc(MetricDestroySuccess)
	return nil
}

// Sweep deletes every row whose updated_at is strictly older than now-maxAge,
// in one transaction, and returns the number of rows removed.
//
// With a GCLocker configured, a sweep whose lease is held elsewhere returns
// ErrSweepInProgress. A failing lease backend does not block the sweep.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	defer s.observeLatency(time.Now())

	if s.closed.Load() {
		return 0, opError("gc", "", ErrStoreClosed)
	}
	if maxAge < 0 {
		s.metrics.Inc(MetricGCFailure)
		return 0, opError("gc", "", fmt.Errorf("%w: %s", ErrInvalidMaxLifetime, maxAge))
	}

	if s.gcLock != nil {
		unlock, ok, err := s.gcLock.TryLock(ctx)
		switch {
		case err != nil:
			s.logger.Printf("goSession: gc lease unavailable, sweeping without it: %v", err)
		case !ok:
			s.metrics.Inc(MetricGCSkipped)
			return 0, opError("gc", "", ErrSweepInProgress)
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					s.logger.Printf("goSession: gc lease release: %v", err)
				}
			}()
		}
	}

	now := s.now()
	threshold := now.Add(-maxAge)
	if maxAge > now.Sub(time.Unix(0, 0)) {
		// Nothing predates the epoch; TIMESTAMP columns cannot hold it either.
		s.metrics.Inc(MetricGCRun)
		s.emitSweep(ctx, 0, maxAge, nil)
		return 0, nil
	}

	removed, err := sqltx.Exec(ctx, s.db, s.stmts.DeleteStale, s.stmts.Dialect.TimeValue(threshold))
	if err != nil {
		s.metrics.Inc(MetricGCFailure)
		s.metrics.Inc(MetricStorageError)
		s.emitSweep(ctx, 0, maxAge, err)
		return 0, opError("gc", "", fmt.Errorf("%w: %w", ErrStorage, err))
	}

	s.metrics.Inc(MetricGCRun)
	if removed > 0 {
		s.metrics.Add(MetricGCRowsDeleted, uint64(removed))
	}
	s.emitSweep(ctx, removed, maxAge, nil)
	return removed, nil
}

// Count returns the number of stored sessions, live or stale.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, opError("count", "", ErrStoreClosed)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, s.stmts.Count).Scan(&n); err != nil {
		return 0, opError("count", "", fmt.Errorf("%w: %w", ErrStorage, err))
	}
	return n, nil
}

// EnsureSchema creates the session table and its updated_at index when they
// do not exist, in one transaction.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return opError("schema", "", ErrStoreClosed)
	}
	err := sqltx.Run(ctx, s.db, func(tx *sql.Tx) error {
		for _, ddl := range s.stmts.CreateTable {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return opError("schema", "", fmt.Errorf("%w: %w", ErrStorage, err))
	}
	return nil
}

func (s *Store) usable(id string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if id == "" {
		return ErrEmptySessionID
	}
	if len(id) > schema.MaxIDLength {
		return fmt.Errorf("%w: %d bytes", ErrSessionIDTooLong, len(id))
	}
	return nil
}

func (s *Store) observeLatency(start time.Time) {
	s.metrics.Observe(MetricOperationLatency, time.Since(start))
}

func (s *Store) emit(ctx context.Context, eventType, id string, err error, meta map[string]string) {
	if s.audit == nil {
		return
	}
	ev := audit.Event{
		EventType: eventType,
		Session:   fingerprint(id),
		Table:     s.stmts.Table,
		Success:   err == nil,
		Metadata:  meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.audit.Emit(ctx, ev)
}

func (s *Store) emitSweep(ctx context.Context, removed int64, maxAge time.Duration, err error) {
	if s.audit == nil {
		return
	}
	ev := audit.Event{
		EventType: audit.EventSweep,
		Table:     s.stmts.Table,
		Success:   err == nil,
		Metadata: map[string]string{
			"rows":            strconv.FormatInt(removed, 10),
			"max_age_seconds": strconv.FormatInt(int64(maxAge/time.Second), 10),
		},
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.audit.Emit(ctx, ev)
}

func opError(op, id string, err error) error {
	var fp string
	if id != "" {
		fp = fingerprint(id)
	}
	return &OpError{Op: op, Session: fp, Err: err}
}

// lifetimeDuration converts a gc lifetime in seconds, saturating instead of
// overflowing.
func lifetimeDuration(seconds int64) time.Duration {
	if seconds > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	if seconds < math.MinInt64/int64(time.Second) {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(seconds) * time.Second
}
