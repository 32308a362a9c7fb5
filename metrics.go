package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one store counter.
type MetricID uint16

const (
	// MetricReadHit counts reads that returned a decrypted payload.
	MetricReadHit MetricID = iota
	// MetricReadMiss counts reads for ids with no row.
	MetricReadMiss
	// MetricDecryptFailure counts reads whose ciphertext failed authentication.
	MetricDecryptFailure
	// MetricStorageError counts statement or transaction failures in any operation.
	MetricStorageError
	// MetricWriteSuccess counts committed upserts.
	MetricWriteSuccess
	// MetricWriteFailure counts writes that did not commit.
	MetricWriteFailure
	// MetricDestroySuccess counts committed deletes, including deletes of absent ids.
	MetricDestroySuccess
	// MetricDestroyFailure counts deletes that did not commit.
	MetricDestroyFailure
	// MetricGCRun counts committed sweeps.
	MetricGCRun
	// MetricGCSkipped counts sweeps skipped because the lease was held elsewhere.
	MetricGCSkipped
	// MetricGCFailure counts sweeps that did not commit.
	MetricGCFailure
	// MetricGCRowsDeleted counts rows removed by sweeps.
	MetricGCRowsDeleted
	// MetricOperationLatency is the latency histogram across lifecycle operations.
	MetricOperationLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free store counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the latency histogram. Only MetricOperationLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricOperationLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricOperationLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricOperationLatency].buckets[i])
		}
		s.Histograms[MetricOperationLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 1:
		return 0
	case ms <= 5:
		return 1
	case ms <= 10:
		return 2
	case ms <= 25:
		return 3
	case ms <= 50:
		return 4
	case ms <= 100:
		return 5
	case ms <= 250:
		return 6
	default:
		return 7
	}
}
