package models

import (
	"fmt"
)

// Issue is a single compliance finding reported by the scan provider.
// StableID identifies the finding across scans independent of its wording.
type Issue struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	StableID string `json:"stable_id"`
}

// ScanResult is the payload returned by a scan provider for one target URL.
type ScanResult struct {
	OverallScore   float64            `json:"overall_score"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	Issues         []Issue            `json:"issues,omitempty"`
	TLS            TLSInfo            `json:"tls"`
	LoadTimeMs     int64              `json:"load_time_ms"`
	Raw            []byte             `json:"-"`
}

// FailureClass distinguishes retryable scan failures from permanent ones.
type FailureClass string

const (
	// FailureTransient covers timeouts, connection errors and provider 5xx
	// responses. The target is retried at its next cadence tick.
	FailureTransient FailureClass = "transient"
	// FailurePermanent covers malformed URLs and explicit 4xx rejections that
	// indicate target misconfiguration. The engine keeps retrying but the
	// failure is flagged for manual review.
	FailurePermanent FailureClass = "permanent"
)

// ScanFailure describes a scan attempt that produced no snapshot.
type ScanFailure struct {
	TargetID string
	URL      string
	Class    FailureClass
	Reason   string
	Wrapped  error
}

func (f *ScanFailure) Error() string {
	return fmt.Sprintf("scan of %s failed (%s): %s", f.URL, f.Class, f.Reason)
}

func (f *ScanFailure) Unwrap() error {
	return f.Wrapped
}

// IsTransient reports whether the failure should be considered retryable.
func (f *ScanFailure) IsTransient() bool {
	return f.Class == FailureTransient
}

// NewScanFailure builds a classified scan failure.
func NewScanFailure(targetID, url string, class FailureClass, reason string, wrapped error) *ScanFailure {
	return &ScanFailure{
		TargetID: targetID,
		URL:      url,
		Class:    class,
		Reason:   reason,
		Wrapped:  wrapped,
	}
}
