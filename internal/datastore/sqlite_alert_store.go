package datastore

import (
	"context"
	"database/sql"
	"time"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// SQLiteAlertStore is the sqlite-backed AlertRepository.
type SQLiteAlertStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewSQLiteAlertStore creates an alert store over an initialized DB.
func NewSQLiteAlertStore(db *DB, logger zerolog.Logger) *SQLiteAlertStore {
	return &SQLiteAlertStore{
		db:     db,
		logger: logger.With().Str("component", "SQLiteAlertStore").Logger(),
	}
}

func (s *SQLiteAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_id, target_id, alert_type, severity, title, description, created_at, resolved_at, notification_sent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.AlertID, alert.TargetID, string(alert.Type), string(alert.Severity),
		alert.Title, alert.Description, alert.CreatedAt.UnixMilli(),
		timePtrToMilli(alert.ResolvedAt), boolToInt(alert.NotificationSent))
	if err != nil {
		return errorwrapper.NewStorageError("alert create", err)
	}
	return nil
}

func (s *SQLiteAlertStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT alert_id, target_id, alert_type, severity, title, description, created_at, resolved_at, notification_sent
		 FROM alerts WHERE alert_id = ?`, alertID)
	alert, err := scanAlertRow(row)
	if err == sql.ErrNoRows {
		return nil, errorwrapper.NewNotFoundError("alert", alertID)
	}
	if err != nil {
		return nil, errorwrapper.NewStorageError("alert get", err)
	}
	return alert, nil
}

func (s *SQLiteAlertStore) OpenByTargetAndType(ctx context.Context, targetID string, alertType models.AlertType) (*models.Alert, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT alert_id, target_id, alert_type, severity, title, description, created_at, resolved_at, notification_sent
		 FROM alerts WHERE target_id = ? AND alert_type = ? AND resolved_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, targetID, string(alertType))
	alert, err := scanAlertRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errorwrapper.NewStorageError("alert open lookup", err)
	}
	return alert, nil
}

func (s *SQLiteAlertStore) ListByTarget(ctx context.Context, targetID string, openOnly bool) ([]*models.Alert, error) {
	query := `SELECT alert_id, target_id, alert_type, severity, title, description, created_at, resolved_at, notification_sent
		FROM alerts WHERE target_id = ?`
	if openOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, errorwrapper.NewStorageError("alert list", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, errorwrapper.NewStorageError("alert list", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (s *SQLiteAlertStore) MarkNotified(ctx context.Context, alertID string, sent bool) error {
	result, err := s.db.db.ExecContext(ctx,
		`UPDATE alerts SET notification_sent = ? WHERE alert_id = ?`, boolToInt(sent), alertID)
	if err != nil {
		return errorwrapper.NewStorageError("alert mark notified", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errorwrapper.NewNotFoundError("alert", alertID)
	}
	return nil
}

func (s *SQLiteAlertStore) Resolve(ctx context.Context, alertID string, at time.Time) error {
	result, err := s.db.db.ExecContext(ctx,
		`UPDATE alerts SET resolved_at = ? WHERE alert_id = ? AND resolved_at IS NULL`,
		at.UnixMilli(), alertID)
	if err != nil {
		return errorwrapper.NewStorageError("alert resolve", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Already resolved or missing; distinguish for the caller.
		if _, getErr := s.Get(ctx, alertID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *SQLiteAlertStore) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE resolved_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, errorwrapper.NewStorageError("alert count", err)
	}
	return count, nil
}

func (s *SQLiteAlertStore) PruneResolvedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE resolved_at IS NOT NULL AND resolved_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errorwrapper.NewStorageError("alert prune", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func scanAlertRow(row rowScanner) (*models.Alert, error) {
	var (
		alert      models.Alert
		alertType  string
		severity   string
		createdAt  int64
		resolvedAt sql.NullInt64
		notified   int
	)
	err := row.Scan(&alert.AlertID, &alert.TargetID, &alertType, &severity,
		&alert.Title, &alert.Description, &createdAt, &resolvedAt, &notified)
	if err != nil {
		return nil, err
	}
	alert.Type = models.AlertType(alertType)
	alert.Severity = models.Severity(severity)
	alert.CreatedAt = time.UnixMilli(createdAt).UTC()
	alert.NotificationSent = notified != 0
	if resolvedAt.Valid {
		ts := time.UnixMilli(resolvedAt.Int64).UTC()
		alert.ResolvedAt = &ts
	}
	return &alert, nil
}
