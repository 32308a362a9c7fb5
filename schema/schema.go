package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTable is the table name used when none is configured.
	DefaultTable = "sessions"

	// MaxIDLength bounds session identifiers, matching the id column width.
	MaxIDLength = 255

	// sqliteTimeLayout matches SQLite's CURRENT_TIMESTAMP text so column
	// defaults and bound values compare correctly as strings.
	sqliteTimeLayout = "2006-01-02 15:04:05"
)

var (
	// ErrUnknownDialect is returned for dialect names this package does not support.
	ErrUnknownDialect = errors.New("schema: unknown dialect")
	// ErrInvalidTable is returned when a table name is not a plain identifier.
	ErrInvalidTable = errors.New("schema: invalid table name")
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Dialect selects the SQL flavor of the session table.
type Dialect uint8

const (
	// MySQL targets MySQL 5.7+/MariaDB 10.3+ with InnoDB.
	MySQL Dialect = iota
	// SQLite targets SQLite 3.24+ (UPSERT support).
	SQLite
)

// ParseDialect maps a configuration string to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("dialect(%d)", uint8(d))
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// TimeValue converts t into the bind value the dialect stores in timestamp
// columns. Values are UTC with second precision.
func (d Dialect) TimeValue(t time.Time) any {
	t = t.UTC().Truncate(time.Second)
	if d == SQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// ValidTableName reports whether name can be used as a table identifier.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// Statements is the full statement set for one dialect and table.
//
// Upsert binds (id, ciphertext, created_at, updated_at). Select and Delete bind
// (id). DeleteStale binds (threshold).
type Statements struct {
	Dialect     Dialect
	Table       string
	CreateTable []string
	Select      string
	Upsert      string
	Delete      string
	DeleteStale string
	Count       string
}

// Build renders the statements for table in dialect d.
func Build(d Dialect, table string) (Statements, error) {
	if table == "" {
		table = DefaultTable
	}
	if !ValidTableName(table) {
		return Statements{}, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	switch d {
	case MySQL:
		return buildMySQL(table), nil
	case SQLite:
		return buildSQLite(table), nil
	default:
		return Statements{}, fmt.Errorf("%w: %s", ErrUnknownDialect, d)
	}
}

func buildMySQL(table string) Statements {
	q := "`" + table + "`"
	return Statements{
		Dialect: MySQL,
		Table:   table,
		CreateTable: []string{
			"CREATE TABLE IF NOT EXISTS " + q + " (\n" +
				"  `id` VARBINARY(255) NOT NULL,\n" +
				"  `ciphertext` MEDIUMTEXT CHARACTER SET ascii COLLATE ascii_bin NOT NULL,\n" +
				"  `created_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
				"  `updated_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n" +
				"  PRIMARY KEY (`id`),\n" +
				"  KEY `idx_" + table + "_updated_at` (`updated_at`)\n" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		},
		Select: "SELECT `ciphertext` FROM " + q + " WHERE `id` = ?",
		Upsert: "INSERT INTO " + q + " (`id`, `ciphertext`, `created_at`, `updated_at`) VALUES (?, ?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE `ciphertext` = VALUES(`ciphertext`), " +
			"`updated_at` = GREATEST(`updated_at`, VALUES(`updated_at`))",
		Delete:      "DELETE FROM " + q + " WHERE `id` = ?",
		DeleteStale: "DELETE FROM " + q + " WHERE `updated_at` < ?",
		Count:       "SELECT COUNT(*) FROM " + q,
	}
}

func buildSQLite(table string) Statements {
	q := `"` + table + `"`
	return Statements{
		Dialect: SQLite,
		Table:   table,
		CreateTable: []string{
			"CREATE TABLE IF NOT EXISTS " + q + " (\n" +
				"  id TEXT NOT NULL PRIMARY KEY CHECK (length(CAST(id AS BLOB)) BETWEEN 1 AND 255),\n" +
				"  ciphertext TEXT NOT NULL,\n" +
				"  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
				"  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP\n" +
				")",
			`CREATE INDEX IF NOT EXISTS "idx_` + table + `_updated_at" ON ` + q + ` (updated_at)`,
		},
		Select: "SELECT ciphertext FROM " + q + " WHERE id = ?",
		Upsert: "INSERT INTO " + q + " (id, ciphertext, created_at, updated_at) VALUES (?, ?, ?, ?) " +
			"ON CONFLICT(id) DO UPDATE SET ciphertext = excluded.ciphertext, " +
			"updated_at = max(updated_at, excluded.updated_at)",
		Delete:      "DELETE FROM " + q + " WHERE id = ?",
		DeleteStale: "DELETE FROM " + q + " WHERE updated_at < ?",
		Count:       "SELECT COUNT(*) FROM " + q,
	}
}
