package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot staffauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() staffauth.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                       { return f.dropped }

func TestCollectorCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: staffauth.MetricsSnapshot{
			Counters: map[staffauth.MetricID]uint64{
				staffauth.MetricIssueSuccess:         3,
				staffauth.MetricRefreshReuseDetected: 1,
			},
		},
		dropped: 2,
	}
	c := NewCollector(src)

	expected := `
# HELP staffauth_issue_success_total Credential pairs issued.
# TYPE staffauth_issue_success_total counter
staffauth_issue_success_total 3
# HELP staffauth_refresh_reuse_detected_total Refresh credentials presented after revocation or for an unknown record.
# TYPE staffauth_refresh_reuse_detected_total counter
staffauth_refresh_reuse_detected_total 1
# HELP staffauth_audit_dropped_total Audit events dropped because the dispatcher queue was full.
# TYPE staffauth_audit_dropped_total counter
staffauth_audit_dropped_total 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"staffauth_issue_success_total",
		"staffauth_refresh_reuse_detected_total",
		"staffauth_audit_dropped_total",
	))

	want := len(internaldefs.CounterDefs) + len(internaldefs.HistogramDefs) + 1
	assert.Equal(t, want, testutil.CollectAndCount(c))
}

func TestCollectorHistogram(t *testing.T) {
	src := &fakeSource{
		snapshot: staffauth.MetricsSnapshot{
			Histograms: map[staffauth.MetricID][]uint64{
				staffauth.MetricRotateLatency: {1, 0, 2, 0, 0, 0, 0, 1},
			},
		},
	}

	expected := `
# HELP staffauth_rotate_latency_seconds Refresh rotation latency.
# TYPE staffauth_rotate_latency_seconds histogram
staffauth_rotate_latency_seconds_bucket{le="0.005"} 1
staffauth_rotate_latency_seconds_bucket{le="0.01"} 1
staffauth_rotate_latency_seconds_bucket{le="0.025"} 3
staffauth_rotate_latency_seconds_bucket{le="0.05"} 3
staffauth_rotate_latency_seconds_bucket{le="0.1"} 3
staffauth_rotate_latency_seconds_bucket{le="0.25"} 3
staffauth_rotate_latency_seconds_bucket{le="0.5"} 3
staffauth_rotate_latency_seconds_bucket{le="+Inf"} 4
staffauth_rotate_latency_seconds_sum 0
staffauth_rotate_latency_seconds_count 4
`
	require.NoError(t, testutil.CollectAndCompare(NewCollector(src), strings.NewReader(expected),
		"staffauth_rotate_latency_seconds"))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	_, err := Register(reg, &fakeSource{})
	require.NoError(t, err)

	_, err = Register(reg, &fakeSource{})
	assert.Error(t, err, "second registration of the same descriptors must fail")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)+1)
}

func TestCollectorNilSource(t *testing.T) {
	assert.Equal(t, 0, testutil.CollectAndCount(NewCollector(nil)))
}
