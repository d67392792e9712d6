package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/blockcache"
)

var _ blockcache.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements blockcache.MetricsCollector.
type PrometheusCollector struct {
	opLatency *prometheus.HistogramVec
	reads     *prometheus.CounterVec
	writes    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	flushes   prometheus.Counter
	flushed   *prometheus.CounterVec
}

// NewPrometheusCollector creates the cache metrics and registers them with
// reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	pc := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockcache_operation_latency_seconds",
			Help:    "Latency of cache operations",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op", "result"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockcache_reads_total",
			Help: "Reads by result (hit, miss, error)",
		}, []string{"result"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockcache_writes_total",
			Help: "Writes by status",
		}, []string{"status"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockcache_evictions_total",
			Help: "Eviction attempts by victim state and status",
		}, []string{"victim", "status"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockcache_flushes_total",
			Help: "Total flushes completed",
		}),
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockcache_flushed_blocks_total",
			Help: "Blocks written back by flushes, by status",
		}, []string{"status"}),
	}

	reg.MustRegister(pc.opLatency, pc.reads, pc.writes, pc.evictions, pc.flushes, pc.flushed)
	return pc
}

// RecordRead implements blockcache.MetricsCollector.
func (pc *PrometheusCollector) RecordRead(hit bool, d time.Duration, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	pc.reads.WithLabelValues(result).Inc()
	pc.opLatency.WithLabelValues("read", result).Observe(d.Seconds())
}

// RecordWrite implements blockcache.MetricsCollector.
func (pc *PrometheusCollector) RecordWrite(d time.Duration, err error) {
	st := status(err)
	pc.writes.WithLabelValues(st).Inc()
	pc.opLatency.WithLabelValues("write", st).Observe(d.Seconds())
}

// RecordEviction implements blockcache.MetricsCollector.
func (pc *PrometheusCollector) RecordEviction(dirty bool, err error) {
	victim := "clean"
	if dirty {
		victim = "dirty"
	}
	pc.evictions.WithLabelValues(victim, status(err)).Inc()
}

// RecordFlush implements blockcache.MetricsCollector.
func (pc *PrometheusCollector) RecordFlush(blocks, failed int, d time.Duration) {
	pc.flushes.Inc()
	pc.flushed.WithLabelValues("success").Add(float64(blocks))
	pc.flushed.WithLabelValues("error").Add(float64(failed))

	result := "success"
	if failed > 0 {
		result = "error"
	}
	pc.opLatency.WithLabelValues("flush", result).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
