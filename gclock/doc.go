// Package gclock provides a Redis lease that lets one process at a time sweep stale
// sessions.
//
// Session frameworks trigger garbage collection probabilistically on a fraction of
// requests, so a fleet of app servers can start overlapping sweeps of the same table.
// A [Locker] turns those overlaps into cheap no-ops: the first caller takes the lease,
// the rest see it held and skip.
//
// # Semantics
//
// The lease is a single key set with NX and a TTL. Each holder writes a random token
// and release deletes the key only when the token still matches, so an expired holder
// never frees a lease someone else took over.
//
// # What this package must NOT do
//
//   - Block waiting for a lease. Callers that lose the race skip the sweep.
//   - Import goSession.
package gclock
