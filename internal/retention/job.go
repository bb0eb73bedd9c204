package retention

import (
	"context"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// Archiver persists pruned snapshots to cold storage before they leave the
// primary store.
type Archiver interface {
	Archive(snapshots []*models.ScanSnapshot) (string, error)
}

// RetentionJob periodically prunes snapshots and resolved alerts older than
// the retention window. Open alerts and each target's most recent snapshot
// are never pruned; pruned snapshots are optionally archived to Parquet
// first.
type RetentionJob struct {
	cfg       config.RetentionConfig
	snapshots datastore.SnapshotRepository
	alerts    datastore.AlertRepository
	archiver  Archiver
	logger    zerolog.Logger
	now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRetentionJob creates a new RetentionJob. archiver may be nil when
// archiving is disabled.
func NewRetentionJob(
	cfg config.RetentionConfig,
	snapshots datastore.SnapshotRepository,
	alerts datastore.AlertRepository,
	archiver Archiver,
	logger zerolog.Logger,
) *RetentionJob {
	return &RetentionJob{
		cfg:       cfg,
		snapshots: snapshots,
		alerts:    alerts,
		archiver:  archiver,
		logger:    logger.With().Str("component", "RetentionJob").Logger(),
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the periodic sweep loop. A disabled job never sweeps.
func (rj *RetentionJob) Start(ctx context.Context) {
	if !rj.cfg.Enabled {
		rj.logger.Info().Msg("Retention disabled, history is kept indefinitely")
		return
	}

	interval := time.Duration(rj.cfg.SweepIntervalMins) * time.Minute
	if interval <= 0 {
		interval = time.Duration(config.DefaultRetentionSweepInterval) * time.Minute
	}

	rj.wg.Add(1)
	go func() {
		defer rj.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		rj.logger.Info().
			Int("retention_days", rj.cfg.RetentionDays).
			Dur("sweep_interval", interval).
			Bool("archive_before_prune", rj.cfg.ArchiveBeforePrune).
			Msg("Retention job started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-rj.stopChan:
				return
			case <-ticker.C:
				rj.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep.
func (rj *RetentionJob) Stop() {
	rj.stopOnce.Do(func() { close(rj.stopChan) })
	rj.wg.Wait()
}

// Sweep runs one retention pass over all targets and resolved alerts.
func (rj *RetentionJob) Sweep(ctx context.Context) {
	cutoff := rj.now().UTC().AddDate(0, 0, -rj.cfg.RetentionDays)

	targetIDs, err := rj.snapshots.TargetIDs(ctx)
	if err != nil {
		rj.logger.Error().Err(err).Msg("Failed to list targets for retention sweep")
		return
	}

	prunedSnapshots := 0
	for _, targetID := range targetIDs {
		pruned, err := rj.snapshots.PruneOlderThan(ctx, targetID, cutoff)
		if err != nil {
			rj.logger.Error().Err(err).Str("target_id", targetID).Msg("Snapshot pruning failed")
			continue
		}
		if len(pruned) == 0 {
			continue
		}
		prunedSnapshots += len(pruned)

		if rj.cfg.ArchiveBeforePrune && rj.archiver != nil {
			path, err := rj.archiver.Archive(pruned)
			if err != nil {
				rj.logger.Error().Err(err).Str("target_id", targetID).Msg("Snapshot archiving failed")
				continue
			}
			rj.logger.Info().
				Str("target_id", targetID).
				Int("snapshots", len(pruned)).
				Str("archive", path).
				Msg("Pruned snapshots archived")
		}
	}

	prunedAlerts, err := rj.alerts.PruneResolvedOlderThan(ctx, cutoff)
	if err != nil {
		rj.logger.Error().Err(err).Msg("Alert pruning failed")
	}

	if prunedSnapshots > 0 || prunedAlerts > 0 {
		rj.logger.Info().
			Time("cutoff", cutoff).
			Int("snapshots_pruned", prunedSnapshots).
			Int("alerts_pruned", prunedAlerts).
			Msg("Retention sweep finished")
	}
}
