package scheduler

import (
	"sync"

	"github.com/rs/zerolog"
)

// TargetMutexManager manages per-target mutexes to prevent concurrent scans
// of the same target.
type TargetMutexManager struct {
	logger   zerolog.Logger
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewTargetMutexManager creates a new TargetMutexManager.
func NewTargetMutexManager(logger zerolog.Logger) *TargetMutexManager {
	return &TargetMutexManager{
		logger:  logger.With().Str("component", "TargetMutexManager").Logger(),
		mutexes: make(map[string]*sync.Mutex),
	}
}

// GetMutex gets or creates the mutex for a target id using double-checked
// locking.
func (tmm *TargetMutexManager) GetMutex(targetID string) *sync.Mutex {
	if mutex := tmm.tryGetExistingMutex(targetID); mutex != nil {
		return mutex
	}
	return tmm.getOrCreateMutex(targetID)
}

// CleanupUnusedMutexes removes mutexes for targets that are no longer active.
func (tmm *TargetMutexManager) CleanupUnusedMutexes(activeTargetIDs []string) {
	activeSet := make(map[string]struct{}, len(activeTargetIDs))
	for _, id := range activeTargetIDs {
		activeSet[id] = struct{}{}
	}

	tmm.mapMutex.Lock()
	defer tmm.mapMutex.Unlock()

	removed := 0
	for id := range tmm.mutexes {
		if _, active := activeSet[id]; !active {
			delete(tmm.mutexes, id)
			removed++
		}
	}
	if removed > 0 {
		tmm.logger.Debug().Int("removed", removed).Msg("Cleaned up mutexes for inactive targets")
	}
}

// GetMutexCount returns the current number of tracked mutexes.
func (tmm *TargetMutexManager) GetMutexCount() int {
	tmm.mapMutex.RLock()
	defer tmm.mapMutex.RUnlock()
	return len(tmm.mutexes)
}

func (tmm *TargetMutexManager) tryGetExistingMutex(targetID string) *sync.Mutex {
	tmm.mapMutex.RLock()
	defer tmm.mapMutex.RUnlock()
	return tmm.mutexes[targetID]
}

func (tmm *TargetMutexManager) getOrCreateMutex(targetID string) *sync.Mutex {
	tmm.mapMutex.Lock()
	defer tmm.mapMutex.Unlock()

	if mutex, exists := tmm.mutexes[targetID]; exists {
		return mutex
	}
	mutex := &sync.Mutex{}
	tmm.mutexes[targetID] = mutex
	return mutex
}
