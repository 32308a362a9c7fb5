package goSession

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricReadHit)

	if got := m.Value(MetricReadHit); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if m.Enabled() {
		t.Fatal("expected disabled metrics")
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricWriteSuccess)
	m.Add(MetricGCRowsDeleted, 3)
	m.Observe(MetricOperationLatency, time.Millisecond)

	if got := m.Value(MetricWriteSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricWriteSuccess)
	m.Inc(MetricWriteSuccess)
	m.Add(MetricGCRowsDeleted, 40)
	m.Add(MetricGCRowsDeleted, 0)

	if got := m.Value(MetricWriteSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricGCRowsDeleted); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricReadHit)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricReadHit); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		500 * time.Microsecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricOperationLatency, d)
	}
	// Only the latency metric carries a histogram.
	m.Observe(MetricReadHit, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricOperationLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, got := range buckets {
		if got != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, got)
		}
	}
	if _, ok := snap.Histograms[MetricReadHit]; ok {
		t.Fatal("unexpected histogram for a counter metric")
	}
	if _, ok := snap.Counters[MetricOperationLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
}

func TestMetricsHistogramDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricOperationLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricOperationLatency]; ok {
		t.Fatal("histogram recorded while disabled")
	}
}

func TestMetricsSnapshotCoversEveryCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	snap := m.Snapshot()

	for id := MetricID(0); id < metricIDCount; id++ {
		_, ok := snap.Counters[id]
		if id == MetricOperationLatency {
			if ok {
				t.Fatalf("metric %d should be histogram-only", id)
			}
			continue
		}
		if !ok {
			t.Fatalf("metric %d missing from snapshot", id)
		}
	}
}
