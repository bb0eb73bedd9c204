package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AlertEngine turns scan outcomes and detected changes into deduplicated
// alerts. One open alert per (target, type) pair exists at any time; a rule
// whose condition still holds refreshes nothing, and a rule whose condition
// cleared resolves its open alert.
type AlertEngine struct {
	cfg    config.DetectorConfig
	alerts datastore.AlertRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewAlertEngine creates a new AlertEngine.
func NewAlertEngine(cfg config.DetectorConfig, alerts datastore.AlertRepository, logger zerolog.Logger) *AlertEngine {
	return &AlertEngine{
		cfg:    cfg,
		alerts: alerts,
		logger: logger.With().Str("component", "AlertEngine").Logger(),
		now:    time.Now,
	}
}

type alertCondition struct {
	alertType   models.AlertType
	severity    models.Severity
	title       string
	description string
	active      bool
}

// Evaluate applies the alert rules to a successful scan. It creates alerts
// for newly active conditions, resolves open alerts whose condition cleared
// (including a previous scan_failed, since the scan now succeeded), and
// returns only the newly created alerts for notification fan-out.
func (ae *AlertEngine) Evaluate(
	ctx context.Context,
	target *models.MonitoringTarget,
	snapshot *models.ScanSnapshot,
	changes []models.Change,
) ([]*models.Alert, error) {
	conditions := []alertCondition{
		ae.complianceDropCondition(target, snapshot),
		ae.criticalChangeCondition(changes),
		ae.tlsIssueCondition(snapshot),
		ae.performanceIssueCondition(snapshot),
		{alertType: models.AlertScanFailed, active: false},
	}

	var created []*models.Alert
	for _, condition := range conditions {
		alert, err := ae.applyCondition(ctx, target.ID, condition)
		if err != nil {
			return created, err
		}
		if alert != nil {
			created = append(created, alert)
		}
	}
	return created, nil
}

// EvaluateFailure raises a scan_failed alert for a failed scan, deduplicated
// against an already-open one. Other rules are skipped: without a snapshot
// there is nothing to judge them against.
func (ae *AlertEngine) EvaluateFailure(
	ctx context.Context,
	target *models.MonitoringTarget,
	failure *models.ScanFailure,
) (*models.Alert, error) {
	description := fmt.Sprintf("scan of %s failed (%s): %s", target.URL, failure.Class, failure.Reason)
	if !failure.IsTransient() {
		description += "; target needs review, retries will not help"
	}

	return ae.applyCondition(ctx, target.ID, alertCondition{
		alertType:   models.AlertScanFailed,
		severity:    models.SeverityHigh,
		title:       "Compliance scan failed",
		description: description,
		active:      true,
	})
}

// applyCondition reconciles one rule against the open-alert state: active
// with no open alert creates one, inactive with an open alert resolves it.
func (ae *AlertEngine) applyCondition(ctx context.Context, targetID string, condition alertCondition) (*models.Alert, error) {
	open, err := ae.alerts.OpenByTargetAndType(ctx, targetID, condition.alertType)
	if err != nil {
		return nil, err
	}

	if !condition.active {
		if open != nil {
			if err := ae.alerts.Resolve(ctx, open.AlertID, ae.now().UTC()); err != nil {
				return nil, err
			}
			ae.logger.Info().
				Str("target_id", targetID).
				Str("alert_id", open.AlertID).
				Str("alert_type", string(condition.alertType)).
				Msg("Condition cleared, alert auto-resolved")
		}
		return nil, nil
	}

	if open != nil {
		ae.logger.Debug().
			Str("target_id", targetID).
			Str("alert_type", string(condition.alertType)).
			Msg("Condition still active, open alert suppresses a duplicate")
		return nil, nil
	}

	alert := &models.Alert{
		AlertID:     uuid.NewString(),
		TargetID:    targetID,
		Type:        condition.alertType,
		Severity:    condition.severity,
		Title:       condition.title,
		Description: condition.description,
		CreatedAt:   ae.now().UTC(),
	}
	if err := ae.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	ae.logger.Info().
		Str("target_id", targetID).
		Str("alert_id", alert.AlertID).
		Str("alert_type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Msg("Alert raised")
	return alert, nil
}

func (ae *AlertEngine) complianceDropCondition(target *models.MonitoringTarget, snapshot *models.ScanSnapshot) alertCondition {
	return alertCondition{
		alertType: models.AlertComplianceDrop,
		severity:  models.SeverityHigh,
		title:     "Compliance score below threshold",
		description: fmt.Sprintf("overall score %.1f dropped below the configured threshold %.1f",
			snapshot.OverallScore, target.ComplianceThreshold),
		active: snapshot.OverallScore < target.ComplianceThreshold,
	}
}

func (ae *AlertEngine) criticalChangeCondition(changes []models.Change) alertCondition {
	highCount := 0
	for _, change := range changes {
		if change.Severity.AtLeast(models.SeverityHigh) {
			highCount++
		}
	}
	return alertCondition{
		alertType: models.AlertCriticalChange,
		severity:  models.SeverityCritical,
		title:     "Multiple high-severity changes in one scan",
		description: fmt.Sprintf("%d high-severity changes detected in a single scan (threshold %d)",
			highCount, ae.cfg.CriticalChangeHighCount),
		active: ae.cfg.CriticalChangeHighCount > 0 && highCount >= ae.cfg.CriticalChangeHighCount,
	}
}

func (ae *AlertEngine) tlsIssueCondition(snapshot *models.ScanSnapshot) alertCondition {
	return alertCondition{
		alertType:   models.AlertTLSIssue,
		severity:    models.SeverityHigh,
		title:       "TLS disabled or certificate invalid",
		description: fmt.Sprintf("TLS state: enabled=%t valid=%t", snapshot.TLS.Enabled, snapshot.TLS.Valid),
		active:      !snapshot.TLS.OK(),
	}
}

func (ae *AlertEngine) performanceIssueCondition(snapshot *models.ScanSnapshot) alertCondition {
	return alertCondition{
		alertType: models.AlertPerformanceIssue,
		severity:  models.SeverityMedium,
		title:     "Page load time above acceptable limit",
		description: fmt.Sprintf("page loaded in %dms, limit is %dms",
			snapshot.LoadTimeMs, ae.cfg.SlowLoadTimeMs),
		active: ae.cfg.SlowLoadTimeMs > 0 && snapshot.LoadTimeMs > ae.cfg.SlowLoadTimeMs,
	}
}
