package models

import (
	"time"
)

// ScoreTrend summarizes the direction of a target's recent scores.
type ScoreTrend string

const (
	TrendImproving ScoreTrend = "improving"
	TrendDeclining ScoreTrend = "declining"
	TrendStable    ScoreTrend = "stable"
	TrendUnknown   ScoreTrend = "unknown"
)

// TargetStatus is the per-target health view exposed to the management layer.
type TargetStatus struct {
	TargetID           string     `json:"target_id"`
	Trend              ScoreTrend `json:"trend"`
	AverageScore       float64    `json:"average_score"`
	RecentAverageScore float64    `json:"recent_average_score"`
	OpenAlertCount     int        `json:"open_alert_count"`
	LastScanAt         *time.Time `json:"last_scan_at,omitempty"`
}

// ResourceUsage reports process and host resource figures for the system
// status endpoint.
type ResourceUsage struct {
	AllocMB          int64   `json:"alloc_mb"`
	SysMB            int64   `json:"sys_mb"`
	Goroutines       int     `json:"goroutines"`
	SystemMemPercent float64 `json:"system_mem_percent"`
}

// SystemStatus is the engine-wide health view.
type SystemStatus struct {
	ActiveTargets    int           `json:"active_targets"`
	TotalScans       int64         `json:"total_scans"`
	OpenAlerts       int           `json:"open_alerts"`
	SchedulerRunning bool          `json:"scheduler_running"`
	Resources        ResourceUsage `json:"resources"`
}
