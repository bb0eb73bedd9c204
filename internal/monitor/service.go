package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/complywatch/complywatch/internal/alerting"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/differ"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/complywatch/complywatch/internal/notifier"
	"github.com/complywatch/complywatch/internal/registry"
	"github.com/complywatch/complywatch/internal/scanner"
	"github.com/rs/zerolog"
)

// recentWindow is the number of newest snapshots averaged for the trend and
// recent-score figures of a target status.
const recentWindow = 5

// trendEpsilon is the minimum recent-vs-overall average difference treated
// as a real trend rather than noise.
const trendEpsilon = 2.0

// SchedulerState exposes the scheduler liveness to the system status view.
type SchedulerState interface {
	IsRunning() bool
}

// ResourceReporter exposes resource figures to the system status view.
type ResourceReporter interface {
	GetResourceUsage() models.ResourceUsage
}

// MonitoringService is the engine facade. It runs the scan pipeline for due
// targets and exposes the management surface for targets, history, status
// and alerts.
type MonitoringService struct {
	registry   *registry.TargetRegistry
	snapshots  datastore.SnapshotRepository
	alerts     datastore.AlertRepository
	orch       *scanner.ScanOrchestrator
	detector   *differ.ChangeDetector
	engine     *alerting.AlertEngine
	dispatcher *notifier.AlertDispatcher
	schedState SchedulerState
	resources  ResourceReporter
	logger     zerolog.Logger
}

// NewMonitoringService creates a new MonitoringService. schedState and
// resources may be nil; the system status then reports them as absent.
func NewMonitoringService(
	targetRegistry *registry.TargetRegistry,
	snapshots datastore.SnapshotRepository,
	alerts datastore.AlertRepository,
	orch *scanner.ScanOrchestrator,
	detector *differ.ChangeDetector,
	engine *alerting.AlertEngine,
	dispatcher *notifier.AlertDispatcher,
	logger zerolog.Logger,
) *MonitoringService {
	return &MonitoringService{
		registry:   targetRegistry,
		snapshots:  snapshots,
		alerts:     alerts,
		orch:       orch,
		detector:   detector,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "MonitoringService").Logger(),
	}
}

// SetSchedulerState wires the scheduler liveness source after construction,
// since the scheduler itself is built around this service.
func (ms *MonitoringService) SetSchedulerState(state SchedulerState) {
	ms.schedState = state
}

// SetResourceReporter wires the resource usage source.
func (ms *MonitoringService) SetResourceReporter(reporter ResourceReporter) {
	ms.resources = reporter
}

// ProcessTarget runs the full pipeline for one due target: scan, diff
// against the previous snapshot, evaluate alert rules and fan out
// notifications. Notification failures never propagate; scan failures are
// turned into scan_failed alerts and returned for scheduler logging.
func (ms *MonitoringService) ProcessTarget(ctx context.Context, target *models.MonitoringTarget) error {
	snapshot, err := ms.orch.RunScan(ctx, target)
	if err != nil {
		var failure *models.ScanFailure
		if errors.As(err, &failure) {
			alert, alertErr := ms.engine.EvaluateFailure(ctx, target, failure)
			if alertErr != nil {
				ms.logger.Error().Err(alertErr).Str("target_id", target.ID).Msg("Failed to evaluate scan failure")
				return err
			}
			if alert != nil {
				ms.dispatcher.Dispatch(ctx, target, []*models.Alert{alert})
			}
		}
		return err
	}

	changes := ms.detector.Detect(ms.previousSnapshot(ctx, target.ID, snapshot), snapshot)

	created, err := ms.engine.Evaluate(ctx, target, snapshot, changes)
	if err != nil {
		ms.logger.Error().Err(err).Str("target_id", target.ID).Msg("Alert evaluation failed")
		return err
	}
	if len(created) > 0 {
		ms.dispatcher.Dispatch(ctx, target, created)
	}
	return nil
}

// previousSnapshot loads the snapshot preceding current, or nil on the first
// scan of a target.
func (ms *MonitoringService) previousSnapshot(ctx context.Context, targetID string, current *models.ScanSnapshot) *models.ScanSnapshot {
	latest, err := ms.snapshots.Latest(ctx, targetID, 2)
	if err != nil {
		ms.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to load snapshot history for diffing")
		return nil
	}
	for _, snapshot := range latest {
		if snapshot.ScanID != current.ScanID {
			return snapshot
		}
	}
	return nil
}

// RegisterTarget registers a new target for continuous monitoring.
func (ms *MonitoringService) RegisterTarget(ctx context.Context, req registry.RegisterRequest) (*models.MonitoringTarget, error) {
	return ms.registry.Register(ctx, req)
}

// UpdateTarget applies a partial update to a target.
func (ms *MonitoringService) UpdateTarget(ctx context.Context, targetID string, update models.TargetUpdate) (*models.MonitoringTarget, error) {
	return ms.registry.Update(ctx, targetID, update)
}

// RemoveTarget disables a target. History and alerts stay queryable until
// retention prunes them.
func (ms *MonitoringService) RemoveTarget(ctx context.Context, targetID string) error {
	return ms.registry.Disable(ctx, targetID)
}

// GetTarget returns one target by id.
func (ms *MonitoringService) GetTarget(ctx context.Context, targetID string) (*models.MonitoringTarget, error) {
	return ms.registry.Get(ctx, targetID)
}

// GetHistory returns snapshot summaries for a target since the given time,
// newest first.
func (ms *MonitoringService) GetHistory(ctx context.Context, targetID string, since time.Time) ([]models.SnapshotSummary, error) {
	if _, err := ms.registry.Get(ctx, targetID); err != nil {
		return nil, err
	}
	snapshots, err := ms.snapshots.History(ctx, targetID, since)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.SnapshotSummary, 0, len(snapshots))
	for i := len(snapshots) - 1; i >= 0; i-- {
		summaries = append(summaries, snapshots[i].Summary())
	}
	return summaries, nil
}

// GetSnapshot returns the full detail of one stored snapshot.
func (ms *MonitoringService) GetSnapshot(ctx context.Context, targetID string, n int) ([]*models.ScanSnapshot, error) {
	return ms.snapshots.Latest(ctx, targetID, n)
}

// GetAlerts returns alerts for a target, optionally only open ones.
func (ms *MonitoringService) GetAlerts(ctx context.Context, targetID string, openOnly bool) ([]*models.Alert, error) {
	if _, err := ms.registry.Get(ctx, targetID); err != nil {
		return nil, err
	}
	return ms.alerts.ListByTarget(ctx, targetID, openOnly)
}

// GetAlertsByOwner returns alerts across all targets of one owner.
func (ms *MonitoringService) GetAlertsByOwner(ctx context.Context, ownerID string, openOnly bool) ([]*models.Alert, error) {
	targets, err := ms.registry.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var all []*models.Alert
	for _, target := range targets {
		alerts, err := ms.alerts.ListByTarget(ctx, target.ID, openOnly)
		if err != nil {
			return nil, err
		}
		all = append(all, alerts...)
	}
	return all, nil
}

// ResolveAlert marks an alert resolved by hand.
func (ms *MonitoringService) ResolveAlert(ctx context.Context, alertID string) error {
	return ms.alerts.Resolve(ctx, alertID, time.Now().UTC())
}

// GetTargetStatus computes the per-target health view: score trend over the
// recent window, averages and the open alert count.
func (ms *MonitoringService) GetTargetStatus(ctx context.Context, targetID string) (*models.TargetStatus, error) {
	target, err := ms.registry.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	history, err := ms.snapshots.History(ctx, targetID, time.Time{})
	if err != nil {
		return nil, err
	}
	openAlerts, err := ms.alerts.ListByTarget(ctx, targetID, true)
	if err != nil {
		return nil, err
	}

	status := &models.TargetStatus{
		TargetID:       targetID,
		Trend:          models.TrendUnknown,
		OpenAlertCount: len(openAlerts),
		LastScanAt:     target.LastScanAt,
	}
	if len(history) == 0 {
		return status, nil
	}

	status.AverageScore = averageScore(history)
	recent := history
	if len(history) > recentWindow {
		recent = history[len(history)-recentWindow:]
	}
	status.RecentAverageScore = averageScore(recent)

	if len(history) >= 2 {
		switch diff := status.RecentAverageScore - status.AverageScore; {
		case diff > trendEpsilon:
			status.Trend = models.TrendImproving
		case diff < -trendEpsilon:
			status.Trend = models.TrendDeclining
		default:
			status.Trend = models.TrendStable
		}
	}
	return status, nil
}

// GetSystemStatus computes the engine-wide health view.
func (ms *MonitoringService) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	active, err := ms.registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	totalScans, err := ms.snapshots.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	openAlerts, err := ms.alerts.CountOpen(ctx)
	if err != nil {
		return nil, err
	}

	status := &models.SystemStatus{
		ActiveTargets: len(active),
		TotalScans:    totalScans,
		OpenAlerts:    openAlerts,
	}
	if ms.schedState != nil {
		status.SchedulerRunning = ms.schedState.IsRunning()
	}
	if ms.resources != nil {
		status.Resources = ms.resources.GetResourceUsage()
	}
	return status, nil
}

func averageScore(snapshots []*models.ScanSnapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	sum := 0.0
	for _, snapshot := range snapshots {
		sum += snapshot.OverallScore
	}
	return sum / float64(len(snapshots))
}
