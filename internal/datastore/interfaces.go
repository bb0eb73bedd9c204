package datastore

import (
	"context"
	"time"

	"github.com/complywatch/complywatch/internal/models"
)

// TargetRepository owns MonitoringTarget records. All mutations go through
// this interface so the locking discipline lives in one place.
type TargetRepository interface {
	Create(ctx context.Context, target *models.MonitoringTarget) error
	Get(ctx context.Context, id string) (*models.MonitoringTarget, error)
	Update(ctx context.Context, target *models.MonitoringTarget) error
	ListActive(ctx context.Context) ([]*models.MonitoringTarget, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.MonitoringTarget, error)
	// TouchLastScan records the time of the latest scan attempt regardless of
	// its outcome, so a failing target is not retried faster than its cadence.
	TouchLastScan(ctx context.Context, id string, at time.Time) error
}

// SnapshotRepository is the append-only, per-target scan history.
type SnapshotRepository interface {
	// Append stores a snapshot. A snapshot older than the stored latest for
	// its target is rejected with errorwrapper.ErrOutOfOrder and does not
	// alter history.
	Append(ctx context.Context, snapshot *models.ScanSnapshot) error
	// Latest returns up to n most recent snapshots for a target, newest
	// first.
	Latest(ctx context.Context, targetID string, n int) ([]*models.ScanSnapshot, error)
	History(ctx context.Context, targetID string, since time.Time) ([]*models.ScanSnapshot, error)
	TargetIDs(ctx context.Context) ([]string, error)
	CountAll(ctx context.Context) (int64, error)
	// PruneOlderThan removes and returns snapshots older than cutoff for a
	// target. The most recent snapshot is always kept regardless of age.
	PruneOlderThan(ctx context.Context, targetID string, cutoff time.Time) ([]*models.ScanSnapshot, error)
}

// AlertRepository owns Alert persistence. Alerts are created once and only
// their resolution and notification state is ever updated.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, alertID string) (*models.Alert, error)
	// OpenByTargetAndType returns the unresolved alert of the given type for
	// a target, or nil when none is open. This backs alert deduplication.
	OpenByTargetAndType(ctx context.Context, targetID string, alertType models.AlertType) (*models.Alert, error)
	ListByTarget(ctx context.Context, targetID string, openOnly bool) ([]*models.Alert, error)
	MarkNotified(ctx context.Context, alertID string, sent bool) error
	Resolve(ctx context.Context, alertID string, at time.Time) error
	CountOpen(ctx context.Context) (int, error)
	PruneResolvedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
