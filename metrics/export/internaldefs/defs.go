package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets including the unbounded
// last one.
const BucketCount = len(authcore.LatencyBucketBounds) + 1

// AuditDroppedName is the counter exported for events the audit dispatcher
// dropped.
const AuditDroppedName = "authcore_audit_dropped_total"

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the client rate limit."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: authcore.MetricLoginValidationFailure, Name: "authcore_login_validation_failure_total", Help: "Logins rejected for malformed input."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: authcore.MetricAccountCreated, Name: "authcore_account_created_total", Help: "Accounts created."},
	{ID: authcore.MetricAccountDeleted, Name: "authcore_account_deleted_total", Help: "Accounts deleted."},
	{ID: authcore.MetricAccountUnlocked, Name: "authcore_account_unlocked_total", Help: "Administrative account unlocks."},
	{ID: authcore.MetricSuspiciousLoginWarn, Name: "authcore_suspicious_login_warn_total", Help: "Logins flagged with a warn action."},
	{ID: authcore.MetricSuspiciousLoginAlert, Name: "authcore_suspicious_login_alert_total", Help: "Logins flagged with an alert action."},
	{ID: authcore.MetricDetectorDegraded, Name: "authcore_detector_degraded_total", Help: "Suspicious login checks that could not read history."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetSuccess, Name: "authcore_password_reset_success_total", Help: "Completed password resets."},
	{ID: authcore.MetricPasswordResetFailure, Name: "authcore_password_reset_failure_total", Help: "Rejected password reset redemptions."},
	{ID: authcore.MetricPasswordResetThrottled, Name: "authcore_password_reset_throttled_total", Help: "Password reset requests dropped by the request limit."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Stored password changes, including resets."},
	{ID: authcore.MetricPasswordReuseRejected, Name: "authcore_password_reuse_rejected_total", Help: "New passwords rejected as recently used."},
	{ID: authcore.MetricPasswordHashUpgraded, Name: "authcore_password_hash_upgraded_total", Help: "Stored hashes upgraded at login."},
	{ID: authcore.MetricSessionIssued, Name: "authcore_session_issued_total", Help: "Session tokens issued."},
	{ID: authcore.MetricSessionRefreshed, Name: "authcore_session_refreshed_total", Help: "Session tokens refreshed."},
	{ID: authcore.MetricSessionExpired, Name: "authcore_session_expired_total", Help: "Session tokens rejected as expired."},
	{ID: authcore.MetricSessionInvalid, Name: "authcore_session_invalid_total", Help: "Session tokens rejected as invalid."},
	{ID: authcore.MetricAuditWriteFailure, Name: "authcore_audit_write_failure_total", Help: "Audit events that could not be stored or delivered."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(authcore.LatencyBucketBounds))
	for i, b := range authcore.LatencyBucketBounds {
		out[i] = b.Seconds()
	}
	return out
}

// BoundSuffixes returns instrument-name-safe labels for every bucket, the
// last one being "inf".
func BoundSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
