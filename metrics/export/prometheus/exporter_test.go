package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messpass "github.com/MrEthical07/messpass"
)

type fakeSource struct {
	snapshot messpass.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() messpass.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func populated() fakeSource {
	return fakeSource{
		snapshot: messpass.MetricsSnapshot{
			Counters: map[messpass.MetricID]uint64{
				messpass.MetricSignInSuccess: 7,
				messpass.MetricGuardRedirect: 2,
			},
			Histograms: map[messpass.MetricID][]uint64{
				messpass.MetricStoreLoadLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestCollectorEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: messpass.MetricsSnapshot{
		Counters:   map[messpass.MetricID]uint64{},
		Histograms: map[messpass.MetricID][]uint64{},
	}})
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(populated())

	expected := `
# HELP messpass_sign_in_success_total Successful sign-ins.
# TYPE messpass_sign_in_success_total counter
messpass_sign_in_success_total 7
# HELP messpass_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE messpass_audit_dropped_total counter
messpass_audit_dropped_total 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"messpass_sign_in_success_total", "messpass_audit_dropped_total"))
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(populated())))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "messpass_store_load_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(36), h.GetSampleCount())
		require.Len(t, h.GetBucket(), 7)
		assert.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount())
		assert.Equal(t, uint64(28), h.GetBucket()[6].GetCumulativeCount())
	}
	assert.True(t, found)
}

func TestHandlerServesTextFormat(t *testing.T) {
	h, err := Handler(populated())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "messpass_guard_redirect_total 2")
	assert.Contains(t, string(body), `messpass_store_load_latency_seconds_bucket{le="+Inf"} 36`)
}
