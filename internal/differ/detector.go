package differ

import (
	"fmt"
	"sort"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// ChangeDetector compares the two most recent snapshots of a target and
// emits typed changes according to the configured policy table.
type ChangeDetector struct {
	cfg       config.DetectorConfig
	issueDiff *IssueDiffer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewChangeDetector creates a new ChangeDetector.
func NewChangeDetector(cfg config.DetectorConfig, logger zerolog.Logger) *ChangeDetector {
	return &ChangeDetector{
		cfg:       cfg,
		issueDiff: NewIssueDiffer(),
		logger:    logger.With().Str("component", "ChangeDetector").Logger(),
		now:       time.Now,
	}
}

// Detect diffs a consecutive snapshot pair of the same target, previous
// before current. The first scan of a target never produces changes: pass a
// nil previous and an empty list comes back.
func (cd *ChangeDetector) Detect(previous, current *models.ScanSnapshot) []models.Change {
	if previous == nil || current == nil {
		return []models.Change{}
	}

	detectedAt := cd.now().UTC()
	changes := []models.Change{}

	if change, ok := cd.detectScoreDelta(previous, current, detectedAt); ok {
		changes = append(changes, change)
	}
	changes = append(changes, cd.detectCategoryDeltas(previous, current, detectedAt)...)
	if change, ok := cd.detectIssueSetChanged(previous, current, detectedAt); ok {
		changes = append(changes, change)
	}
	if change, ok := cd.detectPerformanceDelta(previous, current, detectedAt); ok {
		changes = append(changes, change)
	}
	if change, ok := cd.detectTLSChanged(previous, current, detectedAt); ok {
		changes = append(changes, change)
	}

	if len(changes) > 0 {
		cd.logger.Info().
			Str("target_id", current.TargetID).
			Int("changes", len(changes)).
			Msg("Detected drift between consecutive snapshots")
	}
	return changes
}

func (cd *ChangeDetector) detectScoreDelta(previous, current *models.ScanSnapshot, detectedAt time.Time) (models.Change, bool) {
	magnitude := abs(current.OverallScore - previous.OverallScore)
	if magnitude < cd.cfg.ScoreDeltaMin {
		return models.Change{}, false
	}

	severity := models.SeverityLow
	switch {
	case magnitude >= cd.cfg.ScoreDeltaHighMin:
		severity = models.SeverityHigh
	case magnitude >= cd.cfg.ScoreDeltaMediumMin:
		severity = models.SeverityMedium
	}

	return models.Change{
		TargetID:    current.TargetID,
		Kind:        models.ChangeScoreDelta,
		Severity:    severity,
		OldValue:    formatScore(previous.OverallScore),
		NewValue:    formatScore(current.OverallScore),
		Magnitude:   magnitude,
		Description: fmt.Sprintf("overall score moved from %.1f to %.1f", previous.OverallScore, current.OverallScore),
		DetectedAt:  detectedAt,
	}, true
}

// detectCategoryDeltas diffs every category present in either snapshot; a
// category absent on one side scores 0.
func (cd *ChangeDetector) detectCategoryDeltas(previous, current *models.ScanSnapshot, detectedAt time.Time) []models.Change {
	categories := make(map[string]struct{})
	for category := range previous.CategoryScores {
		categories[category] = struct{}{}
	}
	for category := range current.CategoryScores {
		categories[category] = struct{}{}
	}

	names := make([]string, 0, len(categories))
	for category := range categories {
		names = append(names, category)
	}
	sort.Strings(names)

	var changes []models.Change
	for _, category := range names {
		oldScore := previous.CategoryScore(category)
		newScore := current.CategoryScore(category)
		magnitude := abs(newScore - oldScore)
		if magnitude < cd.cfg.CategoryDeltaMin {
			continue
		}

		severity := models.SeverityMedium
		if magnitude >= cd.cfg.CategoryDeltaHighMin {
			severity = models.SeverityHigh
		}

		changes = append(changes, models.Change{
			TargetID:    current.TargetID,
			Kind:        models.ChangeCategoryDelta,
			Category:    category,
			Severity:    severity,
			OldValue:    formatScore(oldScore),
			NewValue:    formatScore(newScore),
			Magnitude:   magnitude,
			Description: fmt.Sprintf("category '%s' score moved from %.1f to %.1f", category, oldScore, newScore),
			DetectedAt:  detectedAt,
		})
	}
	return changes
}

// detectIssueSetChanged compares fingerprints only; the trade-off is that it
// signals that the issue set moved, not what moved, at O(1) comparison cost.
// The description carries a line diff of the normalized issue tuples as an
// audit aid.
func (cd *ChangeDetector) detectIssueSetChanged(previous, current *models.ScanSnapshot, detectedAt time.Time) (models.Change, bool) {
	if previous.IssueFingerprint == current.IssueFingerprint {
		return models.Change{}, false
	}

	return models.Change{
		TargetID:    current.TargetID,
		Kind:        models.ChangeIssueSetChanged,
		Severity:    models.SeverityMedium,
		OldValue:    previous.IssueFingerprint,
		NewValue:    current.IssueFingerprint,
		Magnitude:   abs(float64(len(current.Issues) - len(previous.Issues))),
		Description: cd.issueDiff.Describe(previous.Issues, current.Issues),
		DetectedAt:  detectedAt,
	}, true
}

func (cd *ChangeDetector) detectPerformanceDelta(previous, current *models.ScanSnapshot, detectedAt time.Time) (models.Change, bool) {
	delta := current.LoadTimeMs - previous.LoadTimeMs
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < cd.cfg.LoadTimeDeltaMsMin {
		return models.Change{}, false
	}

	// Only a slowdown beyond the high threshold escalates.
	severity := models.SeverityMedium
	if delta > cd.cfg.LoadTimeDeltaMsHighMin {
		severity = models.SeverityHigh
	}

	return models.Change{
		TargetID:    current.TargetID,
		Kind:        models.ChangePerformanceDelta,
		Severity:    severity,
		OldValue:    fmt.Sprintf("%dms", previous.LoadTimeMs),
		NewValue:    fmt.Sprintf("%dms", current.LoadTimeMs),
		Magnitude:   float64(magnitude),
		Description: fmt.Sprintf("load time moved from %dms to %dms", previous.LoadTimeMs, current.LoadTimeMs),
		DetectedAt:  detectedAt,
	}, true
}

// detectTLSChanged fires when TLS validity/enablement flips from ok to not
// ok between snapshots.
func (cd *ChangeDetector) detectTLSChanged(previous, current *models.ScanSnapshot, detectedAt time.Time) (models.Change, bool) {
	if !previous.TLS.OK() || current.TLS.OK() {
		return models.Change{}, false
	}

	return models.Change{
		TargetID:    current.TargetID,
		Kind:        models.ChangeTLSChanged,
		Severity:    models.SeverityHigh,
		OldValue:    formatTLS(previous.TLS),
		NewValue:    formatTLS(current.TLS),
		Magnitude:   1,
		Description: "TLS flipped from valid to invalid or disabled",
		DetectedAt:  detectedAt,
	}, true
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

func formatTLS(info models.TLSInfo) string {
	return fmt.Sprintf("enabled=%t valid=%t", info.Enabled, info.Valid)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
