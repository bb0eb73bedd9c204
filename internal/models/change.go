package models

import (
	"time"
)

// ChangeKind classifies a detected difference between two consecutive
// snapshots of the same target.
type ChangeKind string

const (
	ChangeScoreDelta       ChangeKind = "score_delta"
	ChangeCategoryDelta    ChangeKind = "category_delta"
	ChangeIssueSetChanged  ChangeKind = "issue_set_changed"
	ChangePerformanceDelta ChangeKind = "performance_delta"
	ChangeTLSChanged       ChangeKind = "tls_changed"
)

// Severity is the ordinal urgency of a Change or Alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as urgent as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Change is a detected difference between the previous and current snapshot
// of one target. OldValue/NewValue hold the compared values of the two
// snapshots; Magnitude is the absolute size of the movement.
type Change struct {
	TargetID    string     `json:"target_id"`
	Kind        ChangeKind `json:"kind"`
	Category    string     `json:"category,omitempty"`
	Severity    Severity   `json:"severity"`
	OldValue    string     `json:"old_value"`
	NewValue    string     `json:"new_value"`
	Magnitude   float64    `json:"magnitude"`
	Description string     `json:"description,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}
