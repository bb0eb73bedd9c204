package models

import (
	"time"
)

// Cadence is the configured re-scan interval for a monitored target.
type Cadence string

const (
	CadenceHourly Cadence = "hourly"
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// IsValid reports whether the cadence is one of the supported values.
func (c Cadence) IsValid() bool {
	switch c {
	case CadenceHourly, CadenceDaily, CadenceWeekly:
		return true
	}
	return false
}

// Interval returns the duration between scheduled scans for this cadence.
func (c Cadence) Interval() time.Duration {
	switch c {
	case CadenceHourly:
		return time.Hour
	case CadenceDaily:
		return 24 * time.Hour
	case CadenceWeekly:
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// MonitoringTarget represents a website under continuous compliance watch.
type MonitoringTarget struct {
	ID                  string     `json:"id" yaml:"id"`
	URL                 string     `json:"url" yaml:"url" validate:"required,url"`
	OwnerID             string     `json:"owner_id" yaml:"owner_id"`
	Cadence             Cadence    `json:"cadence" yaml:"cadence" validate:"required,cadence"`
	Enabled             bool       `json:"enabled" yaml:"enabled"`
	ComplianceThreshold float64    `json:"compliance_threshold" yaml:"compliance_threshold" validate:"min=0,max=100"`
	NotifyEnabled       bool       `json:"notify_enabled" yaml:"notify_enabled"`
	NotifyChannels      []string   `json:"notify_channels,omitempty" yaml:"notify_channels,omitempty"`
	LastScanAt          *time.Time `json:"last_scan_at,omitempty" yaml:"last_scan_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" yaml:"updated_at"`
}

// IsDue reports whether the target's cadence has elapsed since its last scan.
// A target that has never been scanned is always due.
func (t *MonitoringTarget) IsDue(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.LastScanAt == nil {
		return true
	}
	return now.Sub(*t.LastScanAt) >= t.Cadence.Interval()
}

// TargetUpdate carries the mutable fields of a MonitoringTarget for partial
// updates. Nil pointers leave the corresponding field untouched.
type TargetUpdate struct {
	URL                 *string
	Cadence             *Cadence
	Enabled             *bool
	ComplianceThreshold *float64
	NotifyEnabled       *bool
	NotifyChannels      *[]string
}
