// Package goSession provides an encrypted, SQL-backed session store with a
// save-handler lifecycle: open, read, write, destroy, gc, close.
//
// Payloads are sealed with XChaCha20-Poly1305 under a single file-held key
// before they reach the database, and each ciphertext is bound to the session
// id it was written under. The database only ever sees ciphertext.
//
// Store methods are safe for concurrent use once [New] or [Builder.Build]
// returns.
//
// # Architecture boundaries
//
// goSession is the public surface: [Store], [Builder], [Config], [SaveHandler]
// and the metrics and audit value types. Key handling lives in keyfile, SQL
// text in schema, option-file parsing in credentials, and the cross-process
// sweep lease in gclock. Transaction scoping and audit dispatch live under
// internal/ and are never exported.
//
// # Two faces
//
// The [SaveHandler] methods never return errors: Read yields an empty payload
// and the mutating calls yield false, with the cause logged. [Store.Load],
// [Store.Save], [Store.Delete] and [Store.Sweep] expose the same operations
// with typed errors for callers that can act on them.
//
// # What this package must NOT do
//
//   - Log or emit session ids, payloads or key material. Ids appear only as
//     fingerprints.
//   - Fail construction silently. A missing key or unreachable database is an
//     error from New or Build, never a deferred lifecycle failure.
//   - Import any sub-package that re-imports goSession.
package goSession
