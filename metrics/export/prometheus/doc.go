// Package prometheus renders goSession store metrics in the Prometheus text
// exposition format.
//
// Counters are named gosession_*_total; the single histogram is
// gosession_operation_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate store state.
package prometheus
