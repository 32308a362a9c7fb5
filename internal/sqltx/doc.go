// Package sqltx runs database work inside a transaction with one exit path: the
// transaction commits when the callback returns nil and rolls back otherwise,
// including when the callback panics.
//
// # What this package must NOT do
//
//   - Retry callbacks. A failed transaction is reported once to the caller.
//   - Import goSession or any sibling internal package.
package sqltx
