package models

import (
	"time"
)

// AlertType identifies the rule that raised an alert.
type AlertType string

const (
	AlertComplianceDrop   AlertType = "compliance_drop"
	AlertCriticalChange   AlertType = "critical_change"
	AlertScanFailed       AlertType = "scan_failed"
	AlertTLSIssue         AlertType = "tls_issue"
	AlertPerformanceIssue AlertType = "performance_issue"
)

// Alert is an actionable, human-facing notification of a problem on a
// target. Alerts are immutable except for resolution and notification state.
type Alert struct {
	AlertID          string     `json:"alert_id"`
	TargetID         string     `json:"target_id"`
	Type             AlertType  `json:"alert_type"`
	Severity         Severity   `json:"severity"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	NotificationSent bool       `json:"notification_sent"`
}

// IsOpen reports whether the alert has not been resolved yet.
func (a *Alert) IsOpen() bool {
	return a.ResolvedAt == nil
}
