// Package schema holds the session table definition and the statements the store issues
// against it, per SQL dialect.
//
// # Table contract
//
//	id          primary key, at most 255 bytes
//	ciphertext  printable sealed payload
//	created_at  timestamp, defaults to the insert time
//	updated_at  timestamp, defaults to the insert time, refreshed on every write, indexed
//
// [MySQL] is the canonical deployment and its DDL matches existing installations,
// including ON UPDATE CURRENT_TIMESTAMP. [SQLite] serves embedded single-host setups;
// it has no auto-update clause, so the store always supplies updated_at itself.
//
// # What this package must NOT do
//
//   - Execute statements. Callers own connections and transactions.
//   - Accept table names that are not plain identifiers.
package schema
