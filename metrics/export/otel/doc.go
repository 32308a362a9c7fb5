// Package otel exposes goSession store counters as OpenTelemetry instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per store counter and
// one Int64ObservableGauge per latency bucket. A single callback reads
// [goSession.Store.MetricsSnapshot] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate store state.
package otel
