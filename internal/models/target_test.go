package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCadence_Interval(t *testing.T) {
	assert.Equal(t, time.Hour, CadenceHourly.Interval())
	assert.Equal(t, 24*time.Hour, CadenceDaily.Interval())
	assert.Equal(t, 7*24*time.Hour, CadenceWeekly.Interval())
}

func TestCadence_IsValid(t *testing.T) {
	assert.True(t, CadenceHourly.IsValid())
	assert.False(t, Cadence("fortnightly").IsValid())
	assert.False(t, Cadence("").IsValid())
}

func TestIsDue(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	tests := []struct {
		name     string
		enabled  bool
		lastScan *time.Time
		want     bool
	}{
		{name: "never scanned", enabled: true, lastScan: nil, want: true},
		{name: "recently scanned", enabled: true, lastScan: &recent, want: false},
		{name: "cadence elapsed", enabled: true, lastScan: &stale, want: true},
		{name: "disabled never due", enabled: false, lastScan: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &MonitoringTarget{
				Cadence:    CadenceHourly,
				Enabled:    tt.enabled,
				LastScanAt: tt.lastScan,
			}
			assert.Equal(t, tt.want, target.IsDue(now))
		})
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityLow.AtLeast(SeverityLow))
}

func TestTLSInfo_OK(t *testing.T) {
	assert.True(t, TLSInfo{Enabled: true, Valid: true}.OK())
	assert.False(t, TLSInfo{Enabled: true, Valid: false}.OK())
	assert.False(t, TLSInfo{Enabled: false, Valid: true}.OK())
}

func TestSnapshotSummary(t *testing.T) {
	snapshot := &ScanSnapshot{
		ScanID:       "scan-1",
		TargetID:     "target-1",
		OverallScore: 82,
		Issues:       []Issue{{Category: "privacy"}, {Category: "cookies"}},
		TLS:          TLSInfo{Enabled: true, Valid: true},
		LoadTimeMs:   900,
	}

	summary := snapshot.Summary()

	assert.Equal(t, "scan-1", summary.ScanID)
	assert.Equal(t, 2, summary.IssueCount)
	assert.True(t, summary.TLSOk)
	assert.Equal(t, int64(900), summary.LoadTimeMs)
}
