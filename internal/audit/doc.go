// Package audit implements async event dispatching for security-relevant store activity.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON writer, log, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one audit record keyed by a session fingerprint.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. The Store decides which
// events to emit.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goSession or any sibling internal package.
//   - Carry session payloads or raw session ids.
package audit
