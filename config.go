package goSession

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/schema"
)

// Config defines how a Builder assembles a Store.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Database DatabaseConfig
	Key      KeyConfig
	Store    StoreConfig
	GC       GCConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
DATABASE CONFIG
====================================
*/

// DatabaseConfig locates and authenticates against the session database.
//
// For MySQL, DSN wins when set; otherwise a DSN is assembled from Address, Name and
// the credentials (User/Password, or the option file when User is empty).
// For SQLite, DSN is the database file name. SQLite handles use a single
// connection with WAL journaling and a busy timeout of ConnectTimeout, so
// MaxOpenConns does not apply.
type DatabaseConfig struct {
	Dialect         string // "mysql" (default) or "sqlite"
	DSN             string
	Address         string
	Name            string
	User            string
	Password        string
	CredentialsFile string // MySQL option file; empty means ~/.my.cnf
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	EnsureSchema    bool
}

/*
====================================
KEY CONFIG
====================================
*/

// KeyConfig locates the encryption key file.
type KeyConfig struct {
	Path            string // empty means ~/.gosession_key
	CreateIfMissing bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig shapes the session table and payload limits.
type StoreConfig struct {
	Table           string
	MaxPayloadBytes int
}

/*
====================================
GC CONFIG
====================================
*/

// GCConfig controls the cross-process sweep lease. The lease is only used when
// a Redis client is supplied to the Builder.
type GCConfig struct {
	LeaseKey string
	LeaseTTL time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	defaultMaxPayloadBytes = 256 << 10
	defaultConnectTimeout  = 5 * time.Second
	defaultLeaseKey        = "gosession:gc:lease"
	defaultLeaseTTL        = 30 * time.Second
)

// DefaultConfig returns the baseline configuration: MySQL, table "sessions",
// 256 KiB payloads, metrics on, audit off.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Dialect:         schema.MySQL.String(),
			Address:         "127.0.0.1:3306",
			Name:            "sessions",
			MaxOpenConns:    16,
			MaxIdleConns:    4,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  defaultConnectTimeout,
		},
		Store: StoreConfig{
			Table:           schema.DefaultTable,
			MaxPayloadBytes: defaultMaxPayloadBytes,
		},
		GC: GCConfig{
			LeaseKey: defaultLeaseKey,
			LeaseTTL: defaultLeaseTTL,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Database
	if _, err := schema.ParseDialect(c.Database.Dialect); err != nil {
		return err
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("Database connection limits must be >= 0")
	}
	if c.Database.ConnMaxLifetime < 0 || c.Database.ConnectTimeout < 0 {
		return errors.New("Database durations must be >= 0")
	}

	// Store
	if c.Store.Table != "" && !schema.ValidTableName(c.Store.Table) {
		return fmt.Errorf("Store Table %q is not a valid identifier", c.Store.Table)
	}
	if c.Store.MaxPayloadBytes < 0 {
		return errors.New("Store MaxPayloadBytes must be >= 0")
	}

	// GC
	if c.GC.LeaseTTL < 0 {
		return errors.New("GC LeaseTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
