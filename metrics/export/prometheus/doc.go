// Package prometheus exposes messpass metrics to Prometheus.
//
// NewCollector adapts App.MetricsSnapshot to a prometheus.Collector; counters
// are named messpass_*_total and the store load latency is the histogram
// messpass_store_load_latency_seconds. Handler mounts the collector on a
// private registry. Nothing is registered globally.
package prometheus
