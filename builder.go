package goSession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/goSession/credentials"
	"github.com/MrEthical07/goSession/gclock"
	"github.com/MrEthical07/goSession/keyfile"
	"github.com/MrEthical07/goSession/schema"
)

// Builder assembles a Store from Config: it resolves credentials, loads the
// key, opens and pings the database, and optionally creates the table.
//
// A Builder is single-use.
type Builder struct {
	config Config

	db       *sql.DB
	key      *keyfile.Key
	redis    redis.UniversalClient
	gcLocker GCLocker
	logger   *log.Logger
	sink     AuditSink
	now      func() time.Time
	homeDir  string

	built bool
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithDB injects an open database handle. The caller keeps ownership.
// Database connection settings are ignored.
func (b *Builder) WithDB(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithKey injects a key instead of reading Key.Path.
func (b *Builder) WithKey(key *keyfile.Key) *Builder {
	b.key = key
	return b
}

// WithRedis enables the cross-process gc lease on client using the GC config.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithGCLocker sets a custom gc lease, taking precedence over WithRedis.
func (b *Builder) WithGCLocker(l GCLocker) *Builder {
	b.gcLocker = l
	return b
}

// WithLogger sets the logger for swallowed lifecycle failures.
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock replaces time.Now inside the store.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithHomeDir overrides the directory used for default key and credential paths.
func (b *Builder) WithHomeDir(dir string) *Builder {
	b.homeDir = dir
	return b
}

// Build validates the configuration and constructs the Store. Every failure
// is fatal: ErrInvalidConfig, ErrKeyIO/ErrKeyFormat, ErrConnection, or
// ErrStorage from schema creation. Nothing is left open on failure.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, err := schema.ParseDialect(cfg.Database.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	key, err := b.loadKey(cfg.Key)
	if err != nil {
		return nil, err
	}

	db, owned := b.db, false
	if db == nil {
		db, err = b.openDatabase(dialect, cfg.Database)
		if err != nil {
			return nil, err
		}
		owned = true
	}
	closeOwned := func() {
		if owned {
			_ = db.Close()
		}
	}

	opts := []Option{
		WithDialect(dialect),
		WithTable(cfg.Store.Table),
		WithMaxPayload(cfg.Store.MaxPayloadBytes),
		WithConnectTimeout(cfg.Database.ConnectTimeout),
		WithLogger(b.logger),
		WithClock(b.now),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, WithMetrics(NewMetrics(cfg.Metrics)))
	}
	if cfg.Audit.Enabled {
		opts = append(opts, WithAuditSink(b.sink, cfg.Audit))
	}
	locker, err := b.buildGCLocker(cfg.GC)
	if err != nil {
		closeOwned()
		return nil, err
	}
	if locker != nil {
		opts = append(opts, WithGCLocker(locker))
	}
	if owned {
		opts = append(opts, withOwnedDB())
	}

	store, err := New(db, key, opts...)
	if err != nil {
		closeOwned()
		return nil, err
	}

	if cfg.Database.EnsureSchema {
		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout(cfg.Database.ConnectTimeout))
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	return store, nil
}

func (b *Builder) loadKey(cfg KeyConfig) (*keyfile.Key, error) {
	if b.key != nil {
		return b.key, nil
	}

	path := cfg.Path
	if path == "" {
		home, err := b.home()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve key path: %v", ErrKeyIO, err)
		}
		path = keyfile.DefaultPath(home)
	}

	if cfg.CreateIfMissing {
		key, _, err := keyfile.LoadOrCreate(path)
		return key, err
	}
	return keyfile.Load(path)
}

func (b *Builder) openDatabase(dialect schema.Dialect, cfg DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case schema.SQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: Database DSN is required for sqlite", ErrInvalidConfig)
		}
		db, err = sql.Open(dialect.DriverName(), sqliteDSN(cfg.DSN, cfg.ConnectTimeout))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		// SQLite allows one writer per file. A single pooled connection
		// queues writers in this process; busy_timeout queues them across
		// processes.
		db.SetMaxOpenConns(1)
	default:
		mc, err := b.mysqlConfig(cfg)
		if err != nil {
			return nil, err
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		db = sql.OpenDB(connector)
	}

	if cfg.MaxOpenConns > 0 && dialect != schema.SQLite {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

const defaultSQLiteBusyTimeout = 5 * time.Second

// sqliteDSN adds busy_timeout, WAL journaling and immediate write
// transactions to dsn unless it already sets them.
func sqliteDSN(dsn string, busy time.Duration) string {
	if busy <= 0 {
		busy = defaultSQLiteBusyTimeout
	}
	var pragmas []string
	if !strings.Contains(dsn, "busy_timeout") {
		pragmas = append(pragmas, fmt.Sprintf("_pragma=busy_timeout(%d)", busy.Milliseconds()))
	}
	if !strings.Contains(dsn, "journal_mode") {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	if !strings.Contains(dsn, "_txlock") {
		pragmas = append(pragmas, "_txlock=immediate")
	}
	if len(pragmas) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

// mysqlConfig resolves the driver configuration. Timestamps are exchanged in
// UTC and parsed into time.Time.
func (b *Builder) mysqlConfig(cfg DatabaseConfig) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: parse dsn: %w", ErrInvalidConfig, err)
		}
		mc = parsed
	} else {
		if cfg.Address == "" {
			return nil, fmt.Errorf("%w: Database Address or DSN is required for mysql", ErrInvalidConfig)
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = cfg.Address
		mc.DBName = cfg.Name

		user, password := cfg.User, cfg.Password
		if user == "" {
			creds, err := b.loadCredentials(cfg.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrConnection, err)
			}
			user, password = creds.User, creds.Password
		}
		mc.User = user
		mc.Passwd = password
	}

	mc.ParseTime = true
	mc.Loc = time.UTC
	if cfg.ConnectTimeout > 0 && mc.Timeout == 0 {
		mc.Timeout = cfg.ConnectTimeout
	}
	return mc, nil
}

func (b *Builder) loadCredentials(path string) (credentials.Credentials, error) {
	if path == "" {
		home, err := b.home()
		if err != nil {
			return credentials.Credentials{}, err
		}
		path = credentials.DefaultPath(home)
	}
	return credentials.Load(path, "client", "gosession")
}

func (b *Builder) buildGCLocker(cfg GCConfig) (GCLocker, error) {
	if b.gcLocker != nil {
		return b.gcLocker, nil
	}
	if b.redis == nil {
		return nil, nil
	}
	l, err := gclock.New(b.redis, cfg.LeaseKey, cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return l, nil
}

func (b *Builder) home() (string, error) {
	if b.homeDir != "" {
		return b.homeDir, nil
	}
	return os.UserHomeDir()
}

func schemaTimeout(connect time.Duration) time.Duration {
	if connect <= 0 {
		return 30 * time.Second
	}
	return 6 * connect
}
