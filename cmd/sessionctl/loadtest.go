package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keyfile"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

// runLoadtest seeds sessions and then measures concurrent read and write
// phases. Without a DSN it runs against a scratch SQLite file, a throwaway
// key and an embedded Redis for the gc lease.
func runLoadtest(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conn := bindConnFlags(fs, env)
	sessions := fs.Int("sessions", 1000, "number of sessions to seed")
	concurrency := fs.Int("concurrency", 8, "number of concurrent workers")
	ops := fs.Int("ops", 5000, "operations per phase (read + write)")
	payloadSize := fs.Int("payload", 512, "payload bytes per session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *payloadSize < 0 {
		return fmt.Errorf("sessions, concurrency, and ops must be > 0 and payload >= 0")
	}

	builder := goSession.NewBuilder()
	cleanupScratch := func() {}
	if *conn.dsn == "" {
		scratch, err := newScratch(conn, builder, stdout)
		if err != nil {
			return err
		}
		cleanupScratch = scratch
	}
	defer cleanupScratch()

	store, done, err := conn.open(stderr, func(cfg *goSession.Config) {
		cfg.Database.EnsureSchema = true
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}, builder)
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	ids := make([]string, *sessions)
	payload := make([]byte, *payloadSize)
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = uuid.NewString()
		if err := store.Save(ctx, ids[i], payload); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	fmt.Fprintf(stdout, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runPhase(*ops, *concurrency, 7919, func(r *mrand.Rand) bool {
		return len(store.Read(ctx, ids[r.Intn(len(ids))])) == len(payload)
	})
	writeStats := runPhase(*ops, *concurrency, 6151, func(r *mrand.Rand) bool {
		return store.Write(ctx, ids[r.Intn(len(ids))], payload)
	})

	gcStart := time.Now()
	removed, gcErr := store.Sweep(ctx, time.Hour)

	fmt.Fprintln(stdout, "---- results ----")
	printStats(stdout, "read", readStats)
	printStats(stdout, "write", writeStats)
	if gcErr != nil {
		fmt.Fprintf(stdout, "gc: %v\n", gcErr)
	} else {
		fmt.Fprintf(stdout, "gc: removed=%d took=%s\n", removed, time.Since(gcStart).Round(time.Microsecond))
	}
	return nil
}

// newScratch points conn at a temporary SQLite database with a generated key
// and an embedded Redis, returning a cleanup func.
func newScratch(conn connFlags, builder *goSession.Builder, stdout io.Writer) (func(), error) {
	dir, err := os.MkdirTemp("", "sessionctl-loadtest-")
	if err != nil {
		return nil, err
	}
	key, err := keyfile.Generate()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	builder.WithKey(key)
	*conn.dialect = "sqlite"
	*conn.dsn = filepath.Join(dir, "sessions.db")

	cleanup := func() { _ = os.RemoveAll(dir) }
	if *conn.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		*conn.redisAddr = mr.Addr()
		cleanup = func() {
			mr.Close()
			_ = os.RemoveAll(dir)
		}
		fmt.Fprintf(stdout, "using miniredis at %s\n", mr.Addr())
	}
	fmt.Fprintf(stdout, "using scratch sqlite at %s\n", *conn.dsn)
	return cleanup, nil
}

func runPhase(ops, concurrency int, seed int64, op func(r *mrand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
