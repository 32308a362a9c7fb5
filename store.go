package goSession

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/keyfile"
	"github.com/MrEthical07/goSession/schema"
)

// maxStoredCiphertext is the MEDIUMTEXT capacity of the ciphertext column.
const maxStoredCiphertext = 1<<24 - 1

// GCLocker coordinates sweeps across processes. TryLock returns ok=false with
// a nil error when another process holds the lease. *gclock.Locker implements it.
type GCLocker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// Store is the encrypted session store. It persists sealed session payloads in
// a single table and implements [SaveHandler].
//
// Store methods are safe for concurrent use; the underlying *sql.DB is a pool.
// A SQLite handle passed to New should allow one open connection and set a
// busy timeout, as Builder does.
// After Close every operation fails with ErrStoreClosed.
type Store struct {
	db         *sql.DB
	ownsDB     bool
	key        *keyfile.Key
	stmts      schema.Statements
	maxPayload int
	now        func() time.Time
	logger     *log.Logger
	metrics    *Metrics
	audit      *audit.Dispatcher
	gcLock     GCLocker
	closed     atomic.Bool
}

type storeOptions struct {
	dialect    schema.Dialect
	table      string
	maxPayload int
	now        func() time.Time
	logger     *log.Logger
	metrics    *Metrics
	auditCfg   AuditConfig
	auditSink  AuditSink
	gcLock     GCLocker
	ownsDB     bool
	pingTTL    time.Duration
}

// Option configures a Store built with New.
type Option func(*storeOptions)

// WithDialect selects the SQL dialect. The default is schema.MySQL.
func WithDialect(d schema.Dialect) Option {
	return func(o *storeOptions) { o.dialect = d }
}

// WithTable sets the session table name. The default is "sessions".
func WithTable(table string) Option {
	return func(o *storeOptions) { o.table = table }
}

// WithMaxPayload bounds plaintext payload size in bytes.
func WithMaxPayload(n int) Option {
	return func(o *storeOptions) { o.maxPayload = n }
}

// WithClock replaces time.Now for updated_at stamps and gc thresholds.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// WithLogger sets where swallowed lifecycle failures are reported.
func WithLogger(logger *log.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

// WithMetrics records store counters into m.
func WithMetrics(m *Metrics) Option {
	return func(o *storeOptions) { o.metrics = m }
}

// WithAuditSink enables asynchronous audit events delivered to sink.
func WithAuditSink(sink AuditSink, cfg AuditConfig) Option {
	return func(o *storeOptions) {
		cfg.Enabled = true
		o.auditCfg = cfg
		o.auditSink = sink
	}
}

// WithGCLocker makes Sweep skip when another process holds the lease.
func WithGCLocker(l GCLocker) Option {
	return func(o *storeOptions) { o.gcLock = l }
}

// WithConnectTimeout bounds the construction-time ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *storeOptions) { o.pingTTL = d }
}

// withOwnedDB makes Close close the database handle.
func withOwnedDB() Option {
	return func(o *storeOptions) { o.ownsDB = true }
}

// New builds a Store over db using key for every payload.
//
// The database is pinged before New returns; an unreachable database fails
// with ErrConnection and no Store is returned. db stays owned by the caller.
func New(db *sql.DB, key *keyfile.Key, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if key == nil {
		return nil, ErrNilKey
	}

	o := storeOptions{
		dialect:    schema.MySQL,
		table:      schema.DefaultTable,
		maxPayload: defaultMaxPayloadBytes,
		now:        time.Now,
		pingTTL:    defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.maxPayload <= 0 {
		o.maxPayload = defaultMaxPayloadBytes
	}
	if envelopeSize(o.maxPayload) > maxStoredCiphertext {
		return nil, fmt.Errorf("%w: max payload %d exceeds ciphertext column", ErrInvalidConfig, o.maxPayload)
	}

	stmts, err := schema.Build(o.dialect, o.table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	ctx := context.Background()
	if o.pingTTL > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.pingTTL)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return &Store{
		db:         db,
		ownsDB:     o.ownsDB,
		key:        key,
		stmts:      stmts,
		maxPayload: o.maxPayload,
		now:        o.now,
		logger:     o.logger,
		metrics:    o.metrics,
		audit:      audit.NewDispatcher(audit.Config(o.auditCfg), o.auditSink),
		gcLock:     o.gcLock,
	}, nil
}

// Table returns the session table name.
func (s *Store) Table() string {
	return s.stmts.Table
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() schema.Dialect {
	return s.stmts.Dialect
}

// KeyFingerprint identifies the store's key without revealing it.
func (s *Store) KeyFingerprint() string {
	return s.key.Fingerprint()
}

// MetricsSnapshot returns the store counters. It satisfies the metrics exporters' source interface.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events lost by the dispatcher.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}
