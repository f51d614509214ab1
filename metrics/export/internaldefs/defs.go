package internaldefs

import (
	messpass "github.com/MrEthical07/messpass"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   messpass.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   messpass.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: messpass.MetricGuardAllow, Name: "messpass_guard_allow_total", Help: "Guard decisions that rendered the protected screen."},
	{ID: messpass.MetricGuardRedirect, Name: "messpass_guard_redirect_total", Help: "Guard decisions that redirected."},
	{ID: messpass.MetricGuardLoading, Name: "messpass_guard_loading_total", Help: "Guard decisions that waited for store initialization."},
	{ID: messpass.MetricStoreReady, Name: "messpass_store_ready_total", Help: "Store initializations that succeeded."},
	{ID: messpass.MetricStoreError, Name: "messpass_store_error_total", Help: "Store initializations that failed."},
	{ID: messpass.MetricStoreStale, Name: "messpass_store_stale_total", Help: "Store loads dropped after a reset."},
	{ID: messpass.MetricActionSuccess, Name: "messpass_action_success_total", Help: "Store actions that completed."},
	{ID: messpass.MetricActionFailure, Name: "messpass_action_failure_total", Help: "Store actions that failed."},
	{ID: messpass.MetricActionStale, Name: "messpass_action_stale_total", Help: "Store action results discarded as stale."},
	{ID: messpass.MetricSignInSuccess, Name: "messpass_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: messpass.MetricSignInFailure, Name: "messpass_sign_in_failure_total", Help: "Failed sign-ins."},
	{ID: messpass.MetricSignOut, Name: "messpass_sign_out_total", Help: "Sign-outs."},
	{ID: messpass.MetricSessionRefreshed, Name: "messpass_session_refreshed_total", Help: "Session token refreshes."},
	{ID: messpass.MetricOfflineFallback, Name: "messpass_offline_fallback_total", Help: "Sessions restored from cache while the provider was unreachable."},
	{ID: messpass.MetricBackendOffline, Name: "messpass_backend_offline_total", Help: "Backend circuit breaker openings."},
	{ID: messpass.MetricBackendOnline, Name: "messpass_backend_online_total", Help: "Backend circuit breaker recoveries."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: messpass.MetricStoreLoadLatency, Name: "messpass_store_load_latency_seconds", Help: "Store load latency."},
}

// AuditDroppedName is the counter for audit events dropped under pressure.
const (
	AuditDroppedName = "messpass_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the finite bucket upper bounds in seconds. The last
// bucket of a snapshot is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten histograms into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
