package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// TargetProcessor runs the full scan pipeline for one due target. The
// scheduler only decides when and with how much concurrency it runs.
type TargetProcessor interface {
	ProcessTarget(ctx context.Context, target *models.MonitoringTarget) error
}

// ResourceGuard lets the scheduler skip a cycle when the process is under
// memory pressure.
type ResourceGuard interface {
	ShouldDefer() bool
}

// Scheduler drives the recurring scan loop: every tick it loads the active
// targets, selects the ones whose cadence has elapsed and hands them to the
// processor under a global concurrency limit. A per-target mutex guarantees
// one in-flight scan per target; a target still scanning at the next tick is
// skipped, not queued.
type Scheduler struct {
	cfg       config.SchedulerConfig
	targets   datastore.TargetRepository
	processor TargetProcessor
	guard     ResourceGuard
	mutexes   *TargetMutexManager
	sem       *semaphore.Weighted
	logger    zerolog.Logger
	now       func() time.Time

	stopChan  chan struct{}
	stopOnce  sync.Once
	loopWG    sync.WaitGroup
	scanWG    sync.WaitGroup
	runningMu sync.RWMutex
	running   bool
}

// NewScheduler creates a new Scheduler. guard may be nil.
func NewScheduler(
	cfg config.SchedulerConfig,
	targets datastore.TargetRepository,
	processor TargetProcessor,
	guard ResourceGuard,
	logger zerolog.Logger,
) *Scheduler {
	maxConcurrent := cfg.MaxConcurrentScans
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultSchedulerMaxConcurrent
	}

	return &Scheduler{
		cfg:       cfg,
		targets:   targets,
		processor: processor,
		guard:     guard,
		mutexes:   NewTargetMutexManager(logger),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		logger:    logger.With().Str("component", "Scheduler").Logger(),
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the scheduling loop. It returns immediately; the loop stops
// when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	tick := time.Duration(s.cfg.TickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Duration(config.DefaultSchedulerTickSeconds) * time.Second
	}

	s.setRunning(true)
	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		defer s.setRunning(false)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		s.logger.Info().
			Dur("tick", tick).
			Int("max_concurrent", s.cfg.MaxConcurrentScans).
			Msg("Scheduler started")

		if s.cfg.RunImmediateOnStart {
			s.runCycle(ctx)
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("Scheduler stopping: context cancelled")
				return
			case <-s.stopChan:
				s.logger.Info().Msg("Scheduler stopping: stop requested")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for in-flight scans up to the configured
// shutdown grace period.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.loopWG.Wait()

	grace := time.Duration(s.cfg.ShutdownGraceSecs) * time.Second
	if grace <= 0 {
		grace = time.Duration(config.DefaultSchedulerShutdownSecs) * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.scanWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped, all scans finished")
	case <-time.After(grace):
		s.logger.Warn().Dur("grace", grace).Msg("Scheduler stopped with scans still in flight")
	}
}

// IsRunning reports whether the scheduling loop is active.
func (s *Scheduler) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()
	return s.running
}

// TriggerCycle runs one scheduling cycle outside the ticker. Used on startup
// and by tests.
func (s *Scheduler) TriggerCycle(ctx context.Context) {
	s.runCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if s.guard != nil && s.guard.ShouldDefer() {
		s.logger.Warn().Msg("Skipping scheduling cycle under resource pressure")
		return
	}

	active, err := s.targets.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active targets")
		return
	}

	now := s.now().UTC()
	due := make([]*models.MonitoringTarget, 0, len(active))
	activeIDs := make([]string, 0, len(active))
	for _, target := range active {
		activeIDs = append(activeIDs, target.ID)
		if target.IsDue(now) {
			due = append(due, target)
		}
	}
	s.mutexes.CleanupUnusedMutexes(activeIDs)

	if len(due) == 0 {
		return
	}
	s.logger.Debug().Int("due", len(due)).Int("active", len(active)).Msg("Scheduling cycle selected due targets")

	for _, target := range due {
		s.launchScan(ctx, target)
	}
}

func (s *Scheduler) launchScan(ctx context.Context, target *models.MonitoringTarget) {
	mutex := s.mutexes.GetMutex(target.ID)
	if !mutex.TryLock() {
		s.logger.Debug().Str("target_id", target.ID).Msg("Scan already in flight, skipping")
		return
	}

	// Non-blocking like the mutex above: a full pool means the target waits
	// for the next tick instead of stalling the cycle loop.
	if !s.sem.TryAcquire(1) {
		mutex.Unlock()
		s.logger.Debug().Str("target_id", target.ID).Msg("Concurrency limit reached, deferring to next tick")
		return
	}

	s.scanWG.Add(1)
	go func() {
		defer s.scanWG.Done()
		defer s.sem.Release(1)
		defer mutex.Unlock()

		if err := s.processor.ProcessTarget(ctx, target); err != nil {
			s.logger.Warn().Err(err).Str("target_id", target.ID).Msg("Target processing finished with error")
		}
	}()
}

func (s *Scheduler) setRunning(running bool) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	s.running = running
}
