package blockcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// metric.PrometheusCollector for a Prometheus implementation.
type MetricsCollector interface {
	// RecordRead is called after each Read. hit is false when the backing
	// store was consulted.
	RecordRead(hit bool, duration time.Duration, err error)

	// RecordWrite is called after each Write.
	RecordWrite(duration time.Duration, err error)

	// RecordEviction is called for every eviction attempt. dirty is true when
	// the victim had to be written back first.
	RecordEviction(dirty bool, err error)

	// RecordFlush is called after each flush with the number of blocks
	// written and the number that failed.
	RecordFlush(blocks, failed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordWrite(time.Duration, error) {}
func (NoopMetricsCollector) RecordEviction(bool, error) {}
func (NoopMetricsCollector) RecordFlush(int, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount       atomic.Int64
	ReadHits        atomic.Int64
	ReadErrors      atomic.Int64
	HitTotalNanos   atomic.Int64
	MissTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
	Evictions       atomic.Int64
	DirtyEvictions  atomic.Int64
	EvictionErrors  atomic.Int64
	FlushCount      atomic.Int64
	FlushedBlocks   atomic.Int64
	FlushFailures   atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(hit bool, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	if hit {
		b.ReadHits.Add(1)
		b.HitTotalNanos.Add(duration.Nanoseconds())
	} else {
		b.MissTotalNanos.Add(duration.Nanoseconds())
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(dirty bool, err error) {
	if err != nil {
		b.EvictionErrors.Add(1)
		return
	}
	b.Evictions.Add(1)
	if dirty {
		b.DirtyEvictions.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(blocks, failed int, duration time.Duration) {
	b.FlushCount.Add(1)
	b.FlushedBlocks.Add(int64(blocks))
	b.FlushFailures.Add(int64(failed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	reads := b.ReadCount.Load()
	hits := b.ReadHits.Load()
	misses := reads - hits - b.ReadErrors.Load()

	s := BasicMetricsStats{
		ReadCount:      reads,
		ReadHits:       hits,
		ReadMisses:     misses,
		ReadErrors:     b.ReadErrors.Load(),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		Evictions:      b.Evictions.Load(),
		DirtyEvictions: b.DirtyEvictions.Load(),
		EvictionErrors: b.EvictionErrors.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushedBlocks:  b.FlushedBlocks.Load(),
		FlushFailures:  b.FlushFailures.Load(),
	}
	if hits > 0 {
		s.HitAvgNanos = b.HitTotalNanos.Load() / hits
	}
	if misses > 0 {
		s.MissAvgNanos = b.MissTotalNanos.Load() / misses
	}
	if s.WriteCount > 0 {
		s.WriteAvgNanos = b.WriteTotalNanos.Load() / s.WriteCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadHits       int64
	ReadMisses     int64
	ReadErrors     int64
	HitAvgNanos    int64
	MissAvgNanos   int64
	WriteCount     int64
	WriteErrors    int64
	WriteAvgNanos  int64
	Evictions      int64
	DirtyEvictions int64
	EvictionErrors int64
	FlushCount     int64
	FlushedBlocks  int64
	FlushFailures  int64
}

// HitRatio returns hits / (hits + misses), or 0 before the first read.
func (s BasicMetricsStats) HitRatio() float64 {
	if s.ReadHits+s.ReadMisses == 0 {
		return 0
	}
	return float64(s.ReadHits) / float64(s.ReadHits+s.ReadMisses)
}
