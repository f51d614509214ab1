// Package otel publishes messpass metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter and the load latency
// histogram becomes one cumulative gauge per bucket plus a count. A single
// callback reads App.MetricsSnapshot on every collection, so the exporter
// never owns the MeterProvider and never mutates App state.
package otel
