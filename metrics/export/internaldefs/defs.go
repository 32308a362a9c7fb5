package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one store counter for exporters.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one store histogram for exporters.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricReadHit, Name: "gosession_read_hit_total", Help: "Reads that returned a decrypted payload."},
	{ID: goSession.MetricReadMiss, Name: "gosession_read_miss_total", Help: "Reads for session ids with no stored row."},
	{ID: goSession.MetricDecryptFailure, Name: "gosession_decrypt_failure_total", Help: "Reads whose stored ciphertext failed authentication."},
	{ID: goSession.MetricStorageError, Name: "gosession_storage_error_total", Help: "Statement or transaction failures across all operations."},
	{ID: goSession.MetricWriteSuccess, Name: "gosession_write_success_total", Help: "Committed session writes."},
	{ID: goSession.MetricWriteFailure, Name: "gosession_write_failure_total", Help: "Session writes that did not commit."},
	{ID: goSession.MetricDestroySuccess, Name: "gosession_destroy_success_total", Help: "Committed session destroys."},
	{ID: goSession.MetricDestroyFailure, Name: "gosession_destroy_failure_total", Help: "Session destroys that did not commit."},
	{ID: goSession.MetricGCRun, Name: "gosession_gc_run_total", Help: "Committed garbage-collection sweeps."},
	{ID: goSession.MetricGCSkipped, Name: "gosession_gc_skipped_total", Help: "Sweeps skipped because another process held the gc lease."},
	{ID: goSession.MetricGCFailure, Name: "gosession_gc_failure_total", Help: "Sweeps that did not commit."},
	{ID: goSession.MetricGCRowsDeleted, Name: "gosession_gc_rows_deleted_total", Help: "Expired sessions removed by sweeps."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricOperationLatency, Name: "gosession_operation_latency_seconds", Help: "Session lifecycle operation latency."},
}

// HistogramBounds are the upper bounds of the store's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.001",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
