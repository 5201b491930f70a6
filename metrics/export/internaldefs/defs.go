package internaldefs

import (
	"github.com/MrEthical07/staffauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   staffauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   staffauth.MetricID
	Name string
	Help string
}

const (
	AuditDroppedName = "staffauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."
)

var CounterDefs = []CounterDef{
	{ID: staffauth.MetricIssueSuccess, Name: "staffauth_issue_success_total", Help: "Credential pairs issued."},
	{ID: staffauth.MetricIssueFailure, Name: "staffauth_issue_failure_total", Help: "Credential issues that failed to sign or persist."},
	{ID: staffauth.MetricLoginSuccess, Name: "staffauth_login_success_total", Help: "Successful password logins."},
	{ID: staffauth.MetricLoginFailure, Name: "staffauth_login_failure_total", Help: "Rejected password logins."},
	{ID: staffauth.MetricStaffRejected, Name: "staffauth_staff_rejected_total", Help: "Logins or rotations refused for non-staff identities."},
	{ID: staffauth.MetricRefreshSuccess, Name: "staffauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: staffauth.MetricRefreshFailure, Name: "staffauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: staffauth.MetricRefreshReuseDetected, Name: "staffauth_refresh_reuse_detected_total", Help: "Refresh credentials presented after revocation or for an unknown record."},
	{ID: staffauth.MetricRefreshWrongType, Name: "staffauth_refresh_wrong_type_total", Help: "Access credentials presented for rotation."},
	{ID: staffauth.MetricRefreshExpired, Name: "staffauth_refresh_expired_total", Help: "Expired refresh credentials presented for rotation."},
	{ID: staffauth.MetricAccessAdmitted, Name: "staffauth_access_admitted_total", Help: "Requests admitted by the access guard."},
	{ID: staffauth.MetricAccessRejected, Name: "staffauth_access_rejected_total", Help: "Requests rejected by the access guard."},
	{ID: staffauth.MetricAccessExpired, Name: "staffauth_access_expired_total", Help: "Requests rejected for an expired access credential."},
	{ID: staffauth.MetricLogoutAll, Name: "staffauth_logout_all_total", Help: "Revoke-all operations."},
	{ID: staffauth.MetricStorageError, Name: "staffauth_storage_error_total", Help: "Refresh store or directory backend failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: staffauth.MetricAuthenticateLatency, Name: "staffauth_authenticate_latency_seconds", Help: "Access guard latency."},
	{ID: staffauth.MetricRotateLatency, Name: "staffauth_rotate_latency_seconds", Help: "Refresh rotation latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into gauges.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
