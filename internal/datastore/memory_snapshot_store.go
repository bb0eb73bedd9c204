package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/models"
)

// MemorySnapshotStore is an in-memory SnapshotRepository. Snapshots are held
// per target in ascending timestamp order.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]*models.ScanSnapshot
}

// NewMemorySnapshotStore creates an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string][]*models.ScanSnapshot),
	}
}

func (s *MemorySnapshotStore) Append(_ context.Context, snapshot *models.ScanSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snapshots[snapshot.TargetID]
	if len(history) > 0 {
		latest := history[len(history)-1]
		if snapshot.Timestamp.Before(latest.Timestamp) {
			return errorwrapper.WrapError(errorwrapper.ErrOutOfOrder,
				"rejecting snapshot older than stored latest for target "+snapshot.TargetID)
		}
	}

	s.snapshots[snapshot.TargetID] = append(history, cloneSnapshot(snapshot))
	return nil
}

func (s *MemorySnapshotStore) Latest(_ context.Context, targetID string, n int) ([]*models.ScanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.snapshots[targetID]
	if n > len(history) {
		n = len(history)
	}

	// Newest first.
	result := make([]*models.ScanSnapshot, 0, n)
	for i := len(history) - 1; i >= len(history)-n; i-- {
		result = append(result, cloneSnapshot(history[i]))
	}
	return result, nil
}

func (s *MemorySnapshotStore) History(_ context.Context, targetID string, since time.Time) ([]*models.ScanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ScanSnapshot
	for _, snapshot := range s.snapshots[targetID] {
		if !snapshot.Timestamp.Before(since) {
			result = append(result, cloneSnapshot(snapshot))
		}
	}
	return result, nil
}

func (s *MemorySnapshotStore) TargetIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemorySnapshotStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, history := range s.snapshots {
		total += int64(len(history))
	}
	return total, nil
}

func (s *MemorySnapshotStore) PruneOlderThan(_ context.Context, targetID string, cutoff time.Time) ([]*models.ScanSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snapshots[targetID]
	if len(history) <= 1 {
		return nil, nil
	}

	var pruned []*models.ScanSnapshot
	var kept []*models.ScanSnapshot
	for i, snapshot := range history {
		// The latest snapshot survives regardless of age.
		if i == len(history)-1 || !snapshot.Timestamp.Before(cutoff) {
			kept = append(kept, snapshot)
			continue
		}
		pruned = append(pruned, cloneSnapshot(snapshot))
	}
	s.snapshots[targetID] = kept
	return pruned, nil
}

func cloneSnapshot(s *models.ScanSnapshot) *models.ScanSnapshot {
	clone := *s
	if s.CategoryScores != nil {
		clone.CategoryScores = make(map[string]float64, len(s.CategoryScores))
		for k, v := range s.CategoryScores {
			clone.CategoryScores[k] = v
		}
	}
	if s.Issues != nil {
		clone.Issues = append([]models.Issue(nil), s.Issues...)
	}
	if s.RawResult != nil {
		clone.RawResult = append([]byte(nil), s.RawResult...)
	}
	return &clone
}
