package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// SQLiteTargetStore is the sqlite-backed TargetRepository.
type SQLiteTargetStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewSQLiteTargetStore creates a target store over an initialized DB.
func NewSQLiteTargetStore(db *DB, logger zerolog.Logger) *SQLiteTargetStore {
	return &SQLiteTargetStore{
		db:     db,
		logger: logger.With().Str("component", "SQLiteTargetStore").Logger(),
	}
}

func (s *SQLiteTargetStore) Create(ctx context.Context, target *models.MonitoringTarget) error {
	channels, err := json.Marshal(target.NotifyChannels)
	if err != nil {
		return errorwrapper.NewStorageError("target create", err)
	}

	query := `INSERT INTO targets
		(id, url, owner_id, cadence, enabled, compliance_threshold, notify_enabled, notify_channels, last_scan_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.db.ExecContext(ctx, query,
		target.ID, target.URL, target.OwnerID, string(target.Cadence),
		boolToInt(target.Enabled), target.ComplianceThreshold, boolToInt(target.NotifyEnabled),
		string(channels), timePtrToMilli(target.LastScanAt),
		target.CreatedAt.UnixMilli(), target.UpdatedAt.UnixMilli())
	if err != nil {
		return errorwrapper.NewStorageError("target create", err)
	}
	return nil
}

func (s *SQLiteTargetStore) Get(ctx context.Context, id string) (*models.MonitoringTarget, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT id, url, owner_id, cadence, enabled, compliance_threshold, notify_enabled, notify_channels, last_scan_at, created_at, updated_at
		 FROM targets WHERE id = ?`, id)
	target, err := scanTargetRow(row)
	if err == sql.ErrNoRows {
		return nil, errorwrapper.NewNotFoundError("target", id)
	}
	if err != nil {
		return nil, errorwrapper.NewStorageError("target get", err)
	}
	return target, nil
}

func (s *SQLiteTargetStore) Update(ctx context.Context, target *models.MonitoringTarget) error {
	channels, err := json.Marshal(target.NotifyChannels)
	if err != nil {
		return errorwrapper.NewStorageError("target update", err)
	}

	query := `UPDATE targets SET url = ?, cadence = ?, enabled = ?, compliance_threshold = ?,
		notify_enabled = ?, notify_channels = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.db.ExecContext(ctx, query,
		target.URL, string(target.Cadence), boolToInt(target.Enabled), target.ComplianceThreshold,
		boolToInt(target.NotifyEnabled), string(channels), target.UpdatedAt.UnixMilli(), target.ID)
	if err != nil {
		return errorwrapper.NewStorageError("target update", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errorwrapper.NewNotFoundError("target", target.ID)
	}
	return nil
}

func (s *SQLiteTargetStore) ListActive(ctx context.Context) ([]*models.MonitoringTarget, error) {
	return s.list(ctx,
		`SELECT id, url, owner_id, cadence, enabled, compliance_threshold, notify_enabled, notify_channels, last_scan_at, created_at, updated_at
		 FROM targets WHERE enabled = 1`)
}

func (s *SQLiteTargetStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.MonitoringTarget, error) {
	return s.list(ctx,
		`SELECT id, url, owner_id, cadence, enabled, compliance_threshold, notify_enabled, notify_channels, last_scan_at, created_at, updated_at
		 FROM targets WHERE owner_id = ?`, ownerID)
}

func (s *SQLiteTargetStore) TouchLastScan(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.db.ExecContext(ctx,
		`UPDATE targets SET last_scan_at = ?, updated_at = ? WHERE id = ?`,
		at.UnixMilli(), at.UnixMilli(), id)
	if err != nil {
		return errorwrapper.NewStorageError("target touch", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errorwrapper.NewNotFoundError("target", id)
	}
	return nil
}

func (s *SQLiteTargetStore) list(ctx context.Context, query string, args ...any) ([]*models.MonitoringTarget, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errorwrapper.NewStorageError("target list", err)
	}
	defer rows.Close()

	var targets []*models.MonitoringTarget
	for rows.Next() {
		target, err := scanTargetRow(rows)
		if err != nil {
			return nil, errorwrapper.NewStorageError("target list", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTargetRow(row rowScanner) (*models.MonitoringTarget, error) {
	var (
		target        models.MonitoringTarget
		cadence       string
		enabled       int
		notifyEnabled int
		channelsJSON  sql.NullString
		lastScanAt    sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)
	err := row.Scan(&target.ID, &target.URL, &target.OwnerID, &cadence, &enabled,
		&target.ComplianceThreshold, &notifyEnabled, &channelsJSON, &lastScanAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	target.Cadence = models.Cadence(cadence)
	target.Enabled = enabled != 0
	target.NotifyEnabled = notifyEnabled != 0
	target.CreatedAt = time.UnixMilli(createdAt).UTC()
	target.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if lastScanAt.Valid {
		ts := time.UnixMilli(lastScanAt.Int64).UTC()
		target.LastScanAt = &ts
	}
	if channelsJSON.Valid && channelsJSON.String != "" {
		if err := json.Unmarshal([]byte(channelsJSON.String), &target.NotifyChannels); err != nil {
			return nil, err
		}
	}
	return &target, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
