package datastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/models"
)

// MemoryAlertStore is an in-memory AlertRepository.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
}

// NewMemoryAlertStore creates an empty in-memory alert store.
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		alerts: make(map[string]*models.Alert),
	}
}

func (s *MemoryAlertStore) Create(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.AlertID]; exists {
		return errorwrapper.NewError("alert '%s' already exists", alert.AlertID)
	}
	s.alerts[alert.AlertID] = cloneAlert(alert)
	return nil
}

func (s *MemoryAlertStore) Get(_ context.Context, alertID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, errorwrapper.NewNotFoundError("alert", alertID)
	}
	return cloneAlert(alert), nil
}

func (s *MemoryAlertStore) OpenByTargetAndType(_ context.Context, targetID string, alertType models.AlertType) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, alert := range s.alerts {
		if alert.TargetID == targetID && alert.Type == alertType && alert.IsOpen() {
			return cloneAlert(alert), nil
		}
	}
	return nil, nil
}

func (s *MemoryAlertStore) ListByTarget(_ context.Context, targetID string, openOnly bool) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Alert
	for _, alert := range s.alerts {
		if alert.TargetID != targetID {
			continue
		}
		if openOnly && !alert.IsOpen() {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryAlertStore) MarkNotified(_ context.Context, alertID string, sent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return errorwrapper.NewNotFoundError("alert", alertID)
	}
	alert.NotificationSent = sent
	return nil
}

func (s *MemoryAlertStore) Resolve(_ context.Context, alertID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return errorwrapper.NewNotFoundError("alert", alertID)
	}
	if alert.ResolvedAt == nil {
		ts := at
		alert.ResolvedAt = &ts
	}
	return nil
}

func (s *MemoryAlertStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, alert := range s.alerts {
		if alert.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (s *MemoryAlertStore) PruneResolvedOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, alert := range s.alerts {
		if alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
			delete(s.alerts, id)
			pruned++
		}
	}
	return pruned, nil
}

func cloneAlert(a *models.Alert) *models.Alert {
	clone := *a
	if a.ResolvedAt != nil {
		ts := *a.ResolvedAt
		clone.ResolvedAt = &ts
	}
	return &clone
}
