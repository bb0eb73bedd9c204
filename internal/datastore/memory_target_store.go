package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/models"
)

// MemoryTargetStore is an in-memory TargetRepository used for tests and
// ephemeral runs.
type MemoryTargetStore struct {
	mu      sync.RWMutex
	targets map[string]*models.MonitoringTarget
}

// NewMemoryTargetStore creates an empty in-memory target store.
func NewMemoryTargetStore() *MemoryTargetStore {
	return &MemoryTargetStore{
		targets: make(map[string]*models.MonitoringTarget),
	}
}

func (s *MemoryTargetStore) Create(_ context.Context, target *models.MonitoringTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.targets[target.ID]; exists {
		return errorwrapper.NewError("target '%s' already exists", target.ID)
	}
	s.targets[target.ID] = cloneTarget(target)
	return nil
}

func (s *MemoryTargetStore) Get(_ context.Context, id string) (*models.MonitoringTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.targets[id]
	if !ok {
		return nil, errorwrapper.NewNotFoundError("target", id)
	}
	return cloneTarget(target), nil
}

func (s *MemoryTargetStore) Update(_ context.Context, target *models.MonitoringTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.targets[target.ID]; !ok {
		return errorwrapper.NewNotFoundError("target", target.ID)
	}
	s.targets[target.ID] = cloneTarget(target)
	return nil
}

func (s *MemoryTargetStore) ListActive(_ context.Context) ([]*models.MonitoringTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.MonitoringTarget
	for _, target := range s.targets {
		if target.Enabled {
			active = append(active, cloneTarget(target))
		}
	}
	return active, nil
}

func (s *MemoryTargetStore) ListByOwner(_ context.Context, ownerID string) ([]*models.MonitoringTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []*models.MonitoringTarget
	for _, target := range s.targets {
		if target.OwnerID == ownerID {
			owned = append(owned, cloneTarget(target))
		}
	}
	return owned, nil
}

func (s *MemoryTargetStore) TouchLastScan(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.targets[id]
	if !ok {
		return errorwrapper.NewNotFoundError("target", id)
	}
	ts := at
	target.LastScanAt = &ts
	target.UpdatedAt = at
	return nil
}

// cloneTarget copies a target so callers never share memory with the store.
func cloneTarget(t *models.MonitoringTarget) *models.MonitoringTarget {
	clone := *t
	if t.LastScanAt != nil {
		ts := *t.LastScanAt
		clone.LastScanAt = &ts
	}
	if t.NotifyChannels != nil {
		clone.NotifyChannels = append([]string(nil), t.NotifyChannels...)
	}
	return &clone
}
