package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps a service counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps a service histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goSession.MetricTokenPairIssued, Name: "gosession_token_pair_issued_total", Help: "Token pairs issued (sessions created)."},
	{ID: goSession.MetricIssueFailure, Name: "gosession_issue_failure_total", Help: "Failed token pair issuances."},
	{ID: goSession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Tokens verified successfully."},
	{ID: goSession.MetricVerifyRevoked, Name: "gosession_verify_revoked_total", Help: "Verifications rejected by the blacklist."},
	{ID: goSession.MetricVerifyExpired, Name: "gosession_verify_expired_total", Help: "Verifications rejected for an expired token."},
	{ID: goSession.MetricVerifyMalformed, Name: "gosession_verify_malformed_total", Help: "Verifications rejected for a malformed or tampered token."},
	{ID: goSession.MetricVerifySessionMismatch, Name: "gosession_verify_session_mismatch_total", Help: "Refresh tokens no longer bound to their session."},
	{ID: goSession.MetricVerifyStoreError, Name: "gosession_verify_store_error_total", Help: "Verifications failed closed on a store error."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goSession.MetricRefreshReuseDetected, Name: "gosession_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented again."},
	{ID: goSession.MetricRefreshRateLimited, Name: "gosession_refresh_rate_limited_total", Help: "Throttled refresh attempts."},
	{ID: goSession.MetricTokenRevoked, Name: "gosession_token_revoked_total", Help: "Tokens added to the blacklist."},
	{ID: goSession.MetricSessionRevoked, Name: "gosession_session_revoked_total", Help: "Revoked sessions."},
	{ID: goSession.MetricRevokeAll, Name: "gosession_revoke_all_total", Help: "Revoke-all-sessions operations."},
	{ID: goSession.MetricTouchFailure, Name: "gosession_touch_failure_total", Help: "Failed background session touches."},
	{ID: goSession.MetricCleanupRun, Name: "gosession_cleanup_run_total", Help: "Cleanup sweeps run."},
	{ID: goSession.MetricCleanupDeleted, Name: "gosession_cleanup_deleted_total", Help: "Session rows and records removed by cleanup."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "VerifyToken latency histogram."},
}

// AuditDroppedName is exported alongside the service counters.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds; the last
// bucket of a snapshot is the overflow (+Inf) bucket.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten buckets into separate instruments.
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

// NormalizeBuckets copies raw into a fixed-size array, zero-padding short
// input.
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
