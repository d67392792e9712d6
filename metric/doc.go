// Package metric exports cache activity to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	pc := metric.NewPrometheusCollector(reg)
//	c, _ := blockcache.New(1024, store, blockcache.WithMetricsCollector(pc))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metric
