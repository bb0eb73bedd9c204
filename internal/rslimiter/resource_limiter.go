package rslimiter

import (
	"runtime"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceLimiter watches process and system memory and tells the scheduler
// to defer new scan cycles under pressure.
type ResourceLimiter struct {
	cfg    config.ResourceLimiterConfig
	logger zerolog.Logger

	mu         sync.RWMutex
	deferScans bool
	isRunning  bool
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewResourceLimiter creates a new ResourceLimiter.
func NewResourceLimiter(cfg config.ResourceLimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	if cfg.SystemMemThreshold <= 0 {
		cfg.SystemMemThreshold = 0.9
	}
	return &ResourceLimiter{
		cfg:      cfg,
		logger:   logger.With().Str("component", "ResourceLimiter").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the periodic pressure check. A disabled limiter never
// defers and Start is a no-op.
func (rl *ResourceLimiter) Start() {
	if !rl.cfg.Enabled {
		return
	}

	rl.mu.Lock()
	if rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = true
	rl.mu.Unlock()

	interval := time.Duration(rl.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.stopChan:
				return
			case <-ticker.C:
				rl.checkPressure()
			}
		}
	}()

	rl.logger.Info().
		Int64("max_memory_mb", rl.cfg.MaxMemoryMB).
		Float64("system_mem_threshold", rl.cfg.SystemMemThreshold).
		Dur("check_interval", interval).
		Msg("Resource limiter started")
}

// Stop halts the pressure check loop.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	if !rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = false
	rl.mu.Unlock()

	rl.stopOnce.Do(func() { close(rl.stopChan) })
	rl.wg.Wait()
	rl.logger.Info().Msg("Resource limiter stopped")
}

// ShouldDefer reports whether new scan cycles should be postponed.
func (rl *ResourceLimiter) ShouldDefer() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.deferScans
}

// GetResourceUsage returns current process and system resource figures.
func (rl *ResourceLimiter) GetResourceUsage() models.ResourceUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := models.ResourceUsage{
		AllocMB:    int64(m.Alloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemPercent = vmStat.UsedPercent
	}
	return usage
}

func (rl *ResourceLimiter) checkPressure() {
	usage := rl.GetResourceUsage()

	pressured := false
	if rl.cfg.MaxMemoryMB > 0 && usage.AllocMB > rl.cfg.MaxMemoryMB {
		pressured = true
		rl.logger.Warn().
			Int64("alloc_mb", usage.AllocMB).
			Int64("limit_mb", rl.cfg.MaxMemoryMB).
			Msg("Process memory above limit, deferring new scan cycles")
		runtime.GC()
	}
	if usage.SystemMemPercent > rl.cfg.SystemMemThreshold*100 {
		pressured = true
		rl.logger.Warn().
			Float64("used_percent", usage.SystemMemPercent).
			Float64("threshold_percent", rl.cfg.SystemMemThreshold*100).
			Msg("System memory above threshold, deferring new scan cycles")
	}

	rl.mu.Lock()
	previous := rl.deferScans
	rl.deferScans = pressured
	rl.mu.Unlock()

	if previous && !pressured {
		rl.logger.Info().Msg("Resource pressure cleared, scan cycles resume")
	}
}
