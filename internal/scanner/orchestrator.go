package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScanOrchestrator runs a single scan for one target: it invokes the scan
// provider under a bounded timeout, classifies failures, builds an immutable
// snapshot from the result and appends it to the snapshot store.
type ScanOrchestrator struct {
	provider  ScanProvider
	targets   datastore.TargetRepository
	snapshots datastore.SnapshotRepository
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScanOrchestrator creates a new ScanOrchestrator.
func NewScanOrchestrator(
	cfg *config.ScanConfig,
	provider ScanProvider,
	targets datastore.TargetRepository,
	snapshots datastore.SnapshotRepository,
	logger zerolog.Logger,
) *ScanOrchestrator {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScanOrchestrator{
		provider:  provider,
		targets:   targets,
		snapshots: snapshots,
		timeout:   timeout,
		logger:    logger.With().Str("component", "ScanOrchestrator").Logger(),
		now:       time.Now,
	}
}

// RunScan scans one target and persists the resulting snapshot. On failure
// it returns a classified *models.ScanFailure. last_scan_at is written on
// the target regardless of outcome so a permanently failing target is not
// retried faster than its cadence.
func (so *ScanOrchestrator) RunScan(ctx context.Context, target *models.MonitoringTarget) (*models.ScanSnapshot, error) {
	startedAt := so.now().UTC()

	if err := so.targets.TouchLastScan(ctx, target.ID, startedAt); err != nil {
		so.logger.Error().Err(err).Str("target_id", target.ID).Msg("Failed to record scan attempt time")
	}

	scanCtx, cancel := context.WithTimeout(ctx, so.timeout)
	defer cancel()

	result, err := so.provider.Scan(scanCtx, target.URL)
	if err != nil {
		return nil, so.classifyFailure(target, err)
	}

	snapshot := so.buildSnapshot(target, result)

	// Shutdown cancellation only covers the provider call. Once a result is
	// in hand the snapshot must reach storage, so the write runs on a context
	// detached from cancellation.
	if err := so.snapshots.Append(context.WithoutCancel(ctx), snapshot); err != nil {
		// Storage failure: the run aborts without a partial write and is
		// surfaced as an operational error, not a compliance alert.
		return nil, err
	}

	so.logger.Info().
		Str("target_id", target.ID).
		Str("scan_id", snapshot.ScanID).
		Float64("score", snapshot.OverallScore).
		Int("issues", len(snapshot.Issues)).
		Msg("Scan completed and snapshot stored")
	return snapshot, nil
}

// buildSnapshot materializes exactly one snapshot from a successful scan.
func (so *ScanOrchestrator) buildSnapshot(target *models.MonitoringTarget, result *models.ScanResult) *models.ScanSnapshot {
	categories := make(map[string]float64, len(result.CategoryScores))
	for category, score := range result.CategoryScores {
		categories[category] = score
	}

	return &models.ScanSnapshot{
		ScanID:           uuid.NewString(),
		TargetID:         target.ID,
		Timestamp:        so.now().UTC(),
		OverallScore:     result.OverallScore,
		CategoryScores:   categories,
		IssueFingerprint: IssueFingerprint(result.Issues),
		Issues:           append([]models.Issue(nil), result.Issues...),
		TLS:              result.TLS,
		LoadTimeMs:       result.LoadTimeMs,
		RawResult:        result.Raw,
	}
}

// classifyFailure normalizes provider errors into classified scan failures
// carrying the target id.
func (so *ScanOrchestrator) classifyFailure(target *models.MonitoringTarget, err error) *models.ScanFailure {
	var failure *models.ScanFailure
	if errors.As(err, &failure) {
		failure.TargetID = target.ID
		if failure.URL == "" {
			failure.URL = target.URL
		}
		so.logFailure(failure)
		return failure
	}

	class := models.FailureTransient
	reason := "scan provider error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "scan timed out"
	}
	failure = models.NewScanFailure(target.ID, target.URL, class, reason, err)
	so.logFailure(failure)
	return failure
}

func (so *ScanOrchestrator) logFailure(failure *models.ScanFailure) {
	so.logger.Warn().
		Str("target_id", failure.TargetID).
		Str("url", failure.URL).
		Str("class", string(failure.Class)).
		Str("reason", failure.Reason).
		Msg("Scan failed")
}
