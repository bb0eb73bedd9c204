package registry

import (
	"context"
	"net/url"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterRequest carries the parameters of a target registration.
type RegisterRequest struct {
	URL                 string
	OwnerID             string
	Cadence             models.Cadence
	ComplianceThreshold float64
	NotifyEnabled       bool
	NotifyChannels      []string
}

// TargetRegistry owns the set of monitored targets and their configuration.
// All mutations of MonitoringTarget records go through this service.
type TargetRegistry struct {
	repo   datastore.TargetRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewTargetRegistry creates a new TargetRegistry over the given repository.
func NewTargetRegistry(repo datastore.TargetRepository, logger zerolog.Logger) *TargetRegistry {
	return &TargetRegistry{
		repo:   repo,
		logger: logger.With().Str("component", "TargetRegistry").Logger(),
		now:    time.Now,
	}
}

// Register validates the request, assigns an id and stores the target
// enabled. Validation failures are returned synchronously and never enter
// the scan pipeline.
func (tr *TargetRegistry) Register(ctx context.Context, req RegisterRequest) (*models.MonitoringTarget, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	if !req.Cadence.IsValid() {
		return nil, errorwrapper.NewValidationError("cadence", req.Cadence, "must be one of hourly, daily, weekly")
	}
	if req.ComplianceThreshold < 0 || req.ComplianceThreshold > 100 {
		return nil, errorwrapper.NewValidationError("compliance_threshold", req.ComplianceThreshold, "must be within [0,100]")
	}

	now := tr.now().UTC()
	target := &models.MonitoringTarget{
		ID:                  uuid.NewString(),
		URL:                 req.URL,
		OwnerID:             req.OwnerID,
		Cadence:             req.Cadence,
		Enabled:             true,
		ComplianceThreshold: req.ComplianceThreshold,
		NotifyEnabled:       req.NotifyEnabled,
		NotifyChannels:      append([]string(nil), req.NotifyChannels...),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := tr.repo.Create(ctx, target); err != nil {
		return nil, err
	}

	tr.logger.Info().Str("target_id", target.ID).Str("url", target.URL).Str("cadence", string(target.Cadence)).Msg("Registered monitoring target")
	return target, nil
}

// Update applies a partial update to a target. Nil fields are left untouched.
func (tr *TargetRegistry) Update(ctx context.Context, targetID string, update models.TargetUpdate) (*models.MonitoringTarget, error) {
	target, err := tr.repo.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if update.URL != nil {
		if err := validateURL(*update.URL); err != nil {
			return nil, err
		}
		target.URL = *update.URL
	}
	if update.Cadence != nil {
		if !update.Cadence.IsValid() {
			return nil, errorwrapper.NewValidationError("cadence", *update.Cadence, "must be one of hourly, daily, weekly")
		}
		target.Cadence = *update.Cadence
	}
	if update.ComplianceThreshold != nil {
		if *update.ComplianceThreshold < 0 || *update.ComplianceThreshold > 100 {
			return nil, errorwrapper.NewValidationError("compliance_threshold", *update.ComplianceThreshold, "must be within [0,100]")
		}
		target.ComplianceThreshold = *update.ComplianceThreshold
	}
	if update.Enabled != nil {
		target.Enabled = *update.Enabled
	}
	if update.NotifyEnabled != nil {
		target.NotifyEnabled = *update.NotifyEnabled
	}
	if update.NotifyChannels != nil {
		target.NotifyChannels = append([]string(nil), (*update.NotifyChannels)...)
	}
	target.UpdatedAt = tr.now().UTC()

	if err := tr.repo.Update(ctx, target); err != nil {
		return nil, err
	}

	tr.logger.Info().Str("target_id", targetID).Msg("Updated monitoring target")
	return target, nil
}

// Disable soft-deletes a target: it is removed from active scheduling while
// its snapshot and alert history stays intact for the audit trail.
func (tr *TargetRegistry) Disable(ctx context.Context, targetID string) error {
	enabled := false
	_, err := tr.Update(ctx, targetID, models.TargetUpdate{Enabled: &enabled})
	if err != nil {
		return err
	}
	tr.logger.Info().Str("target_id", targetID).Msg("Disabled monitoring target")
	return nil
}

// Get returns a single target by id.
func (tr *TargetRegistry) Get(ctx context.Context, targetID string) (*models.MonitoringTarget, error) {
	return tr.repo.Get(ctx, targetID)
}

// ListActive returns all enabled targets.
func (tr *TargetRegistry) ListActive(ctx context.Context) ([]*models.MonitoringTarget, error) {
	return tr.repo.ListActive(ctx)
}

// ListByOwner returns all targets registered by an owner.
func (tr *TargetRegistry) ListByOwner(ctx context.Context, ownerID string) ([]*models.MonitoringTarget, error) {
	return tr.repo.ListByOwner(ctx, ownerID)
}

// TouchLastScan records the time of the latest scan attempt for a target.
func (tr *TargetRegistry) TouchLastScan(ctx context.Context, targetID string, at time.Time) error {
	return tr.repo.TouchLastScan(ctx, targetID, at)
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errorwrapper.NewValidationError("url", raw, "must be an absolute http(s) URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errorwrapper.NewValidationError("url", raw, "scheme must be http or https")
	}
	return nil
}
