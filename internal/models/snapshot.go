package models

import (
	"time"
)

// TLSInfo captures the TLS observations reported by the scan provider.
type TLSInfo struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Valid   bool `json:"valid" yaml:"valid"`
}

// OK reports whether TLS is both enabled and valid.
func (ti TLSInfo) OK() bool {
	return ti.Enabled && ti.Valid
}

// ScanSnapshot is one immutable observation of a target's compliance state.
// Snapshots are ordered by Timestamp within a target and are never mutated
// once stored.
type ScanSnapshot struct {
	ScanID           string             `json:"scan_id"`
	TargetID         string             `json:"target_id"`
	Timestamp        time.Time          `json:"timestamp"`
	OverallScore     float64            `json:"overall_score"`
	CategoryScores   map[string]float64 `json:"category_scores,omitempty"`
	IssueFingerprint string             `json:"issue_fingerprint"`
	Issues           []Issue            `json:"issues,omitempty"`
	TLS              TLSInfo            `json:"tls"`
	LoadTimeMs       int64              `json:"load_time_ms"`
	RawResult        []byte             `json:"raw_result,omitempty"`
}

// CategoryScore returns the score for a category, treating an absent
// category as zero so snapshots with differing category sets diff cleanly.
func (s *ScanSnapshot) CategoryScore(category string) float64 {
	if s.CategoryScores == nil {
		return 0
	}
	return s.CategoryScores[category]
}

// SnapshotSummary is the trimmed view of a snapshot returned by the history
// endpoints. It omits the raw provider payload and per-issue details.
type SnapshotSummary struct {
	ScanID       string    `json:"scan_id"`
	TargetID     string    `json:"target_id"`
	Timestamp    time.Time `json:"timestamp"`
	OverallScore float64   `json:"overall_score"`
	IssueCount   int       `json:"issue_count"`
	TLSOk        bool      `json:"tls_ok"`
	LoadTimeMs   int64     `json:"load_time_ms"`
}

// Summary converts a snapshot into its summary view.
func (s *ScanSnapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ScanID:       s.ScanID,
		TargetID:     s.TargetID,
		Timestamp:    s.Timestamp,
		OverallScore: s.OverallScore,
		IssueCount:   len(s.Issues),
		TLSOk:        s.TLS.OK(),
		LoadTimeMs:   s.LoadTimeMs,
	}
}
