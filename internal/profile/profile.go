// Package profile measures how long a compiled plan takes to apply to a set
// of sample records.
package profile

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/plan"
)

// ErrNoSamples is returned when there is nothing to profile
var ErrNoSamples = errors.New("profile requires at least one sample")

// Config holds profiling configuration
type Config struct {
	// Iterations is the number of timed passes over all samples
	Iterations int

	// WarmupIterations passes run first and are not timed
	WarmupIterations int

	// Evaluation options used for every apply
	Evaluation evaluator.Options

	Logger *zap.Logger
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() *Config {
	return &Config{
		Iterations:       100,
		WarmupIterations: 10,
	}
}

// Stats summarizes a set of latencies
type Stats struct {
	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P90  time.Duration `json:"p90"`
	P99  time.Duration `json:"p99"`
}

// MemoryStats is the allocation delta across the timed passes
type MemoryStats struct {
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	Mallocs         uint64 `json:"mallocs"`
	NumGC           uint32 `json:"numGC"`
}

// Report is the outcome of one profiling run
type Report struct {
	RunID            string        `json:"runId"`
	CacheKey         string        `json:"cacheKey"`
	Samples          int           `json:"samples"`
	Iterations       int           `json:"iterations"`
	WarmupIterations int           `json:"warmupIterations"`
	Applies          int           `json:"applies"`
	ErrorCount       int           `json:"errorCount"`
	Total            time.Duration `json:"total"`
	Latency          Stats         `json:"latency"`
	Memory           MemoryStats   `json:"memory"`
}

// Run applies p to every sample Iterations times and reports per-apply
// latency. ErrorCount counts samples whose results carry errors.
func Run(p *plan.Plan, samples []any, cfg *Config) (*Report, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if cfg.Iterations < 1 {
		return nil, fmt.Errorf("profile iterations must be at least 1, got %d", cfg.Iterations)
	}
	if cfg.WarmupIterations < 0 {
		return nil, fmt.Errorf("profile warmup iterations cannot be negative, got %d", cfg.WarmupIterations)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	report := &Report{
		RunID:            uuid.NewString(),
		CacheKey:         p.CacheKey(),
		Samples:          len(samples),
		Iterations:       cfg.Iterations,
		WarmupIterations: cfg.WarmupIterations,
	}
	log = log.With(zap.String("run_id", report.RunID))

	// Evaluation logs would dominate the timings
	opts := cfg.Evaluation
	opts.Logger = zap.NewNop()

	for i := 0; i < cfg.WarmupIterations; i++ {
		for _, s := range samples {
			p.Apply(s, opts)
		}
	}

	for _, s := range samples {
		if p.Apply(s, opts).HasErrors() {
			report.ErrorCount++
		}
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	durations := make([]time.Duration, 0, cfg.Iterations*len(samples))
	start := time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		for _, s := range samples {
			t0 := time.Now()
			p.Apply(s, opts)
			durations = append(durations, time.Since(t0))
		}
	}
	report.Total = time.Since(start)

	runtime.ReadMemStats(&after)
	report.Memory = MemoryStats{
		TotalAllocBytes: after.TotalAlloc - before.TotalAlloc,
		Mallocs:         after.Mallocs - before.Mallocs,
		NumGC:           after.NumGC - before.NumGC,
	}

	report.Applies = len(durations)
	report.Latency = Summarize(durations)

	log.Debug("profile finished",
		zap.Int("applies", report.Applies),
		zap.Duration("p50", report.Latency.P50),
		zap.Duration("p99", report.Latency.P99))
	return report, nil
}

// Summarize computes min, max, mean and nearest-rank percentiles. The input
// is not modified.
func Summarize(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: sum / time.Duration(len(sorted)),
		P50:  Percentile(sorted, 50),
		P90:  Percentile(sorted, 90),
		P99:  Percentile(sorted, 99),
	}
}

// Percentile returns the nearest-rank percentile of an ascending slice
func Percentile(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(pct / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
