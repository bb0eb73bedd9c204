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

// SQLiteSnapshotStore is the sqlite-backed SnapshotRepository.
type SQLiteSnapshotStore struct {
	db     *DB
	logger zerolog.Logger
}

// NewSQLiteSnapshotStore creates a snapshot store over an initialized DB.
func NewSQLiteSnapshotStore(db *DB, logger zerolog.Logger) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{
		db:     db,
		logger: logger.With().Str("component", "SQLiteSnapshotStore").Logger(),
	}
}

func (s *SQLiteSnapshotStore) Append(ctx context.Context, snapshot *models.ScanSnapshot) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Ordering guard inside the transaction: reject anything older than the
	// stored latest for this target.
	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM snapshots WHERE target_id = ?`, snapshot.TargetID).Scan(&latest)
	if err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}
	if latest.Valid && snapshot.Timestamp.UnixMilli() < latest.Int64 {
		return errorwrapper.WrapError(errorwrapper.ErrOutOfOrder,
			"rejecting snapshot older than stored latest for target "+snapshot.TargetID)
	}

	categories, err := json.Marshal(snapshot.CategoryScores)
	if err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}
	issues, err := json.Marshal(snapshot.Issues)
	if err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots
		 (scan_id, target_id, timestamp, overall_score, category_scores, issue_fingerprint, issues, tls_enabled, tls_valid, load_time_ms, raw_result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ScanID, snapshot.TargetID, snapshot.Timestamp.UnixMilli(), snapshot.OverallScore,
		string(categories), snapshot.IssueFingerprint, string(issues),
		boolToInt(snapshot.TLS.Enabled), boolToInt(snapshot.TLS.Valid),
		snapshot.LoadTimeMs, snapshot.RawResult)
	if err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}

	if err := tx.Commit(); err != nil {
		return errorwrapper.NewStorageError("snapshot append", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Latest(ctx context.Context, targetID string, n int) ([]*models.ScanSnapshot, error) {
	return s.query(ctx,
		`SELECT scan_id, target_id, timestamp, overall_score, category_scores, issue_fingerprint, issues, tls_enabled, tls_valid, load_time_ms, raw_result
		 FROM snapshots WHERE target_id = ? ORDER BY timestamp DESC LIMIT ?`, targetID, n)
}

func (s *SQLiteSnapshotStore) History(ctx context.Context, targetID string, since time.Time) ([]*models.ScanSnapshot, error) {
	return s.query(ctx,
		`SELECT scan_id, target_id, timestamp, overall_score, category_scores, issue_fingerprint, issues, tls_enabled, tls_valid, load_time_ms, raw_result
		 FROM snapshots WHERE target_id = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		targetID, since.UnixMilli())
}

func (s *SQLiteSnapshotStore) TargetIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx, `SELECT DISTINCT target_id FROM snapshots`)
	if err != nil {
		return nil, errorwrapper.NewStorageError("snapshot target ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errorwrapper.NewStorageError("snapshot target ids", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteSnapshotStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count)
	if err != nil {
		return 0, errorwrapper.NewStorageError("snapshot count", err)
	}
	return count, nil
}

func (s *SQLiteSnapshotStore) PruneOlderThan(ctx context.Context, targetID string, cutoff time.Time) ([]*models.ScanSnapshot, error) {
	// Select and delete run in one transaction so the returned rows are
	// exactly the rows removed, even with appends racing in.
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errorwrapper.NewStorageError("snapshot prune", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Everything older than cutoff except the most recent snapshot.
	rows, err := tx.QueryContext(ctx,
		`SELECT scan_id, target_id, timestamp, overall_score, category_scores, issue_fingerprint, issues, tls_enabled, tls_valid, load_time_ms, raw_result
		 FROM snapshots WHERE target_id = ? AND timestamp < ?
		 AND timestamp < (SELECT MAX(timestamp) FROM snapshots WHERE target_id = ?)
		 ORDER BY timestamp ASC`,
		targetID, cutoff.UnixMilli(), targetID)
	if err != nil {
		return nil, errorwrapper.NewStorageError("snapshot prune", err)
	}
	pruned, err := scanSnapshotRows(rows)
	if err != nil {
		return nil, err
	}
	if len(pruned) == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE target_id = ? AND timestamp < ?
		 AND timestamp < (SELECT MAX(timestamp) FROM snapshots WHERE target_id = ?)`,
		targetID, cutoff.UnixMilli(), targetID)
	if err != nil {
		return nil, errorwrapper.NewStorageError("snapshot prune", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errorwrapper.NewStorageError("snapshot prune", err)
	}
	return pruned, nil
}

func (s *SQLiteSnapshotStore) query(ctx context.Context, query string, args ...any) ([]*models.ScanSnapshot, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errorwrapper.NewStorageError("snapshot query", err)
	}
	return scanSnapshotRows(rows)
}

func scanSnapshotRows(rows *sql.Rows) ([]*models.ScanSnapshot, error) {
	defer rows.Close()

	var snapshots []*models.ScanSnapshot
	for rows.Next() {
		var (
			snapshot   models.ScanSnapshot
			ts         int64
			categories sql.NullString
			issues     sql.NullString
			tlsEnabled int
			tlsValid   int
		)
		err := rows.Scan(&snapshot.ScanID, &snapshot.TargetID, &ts, &snapshot.OverallScore,
			&categories, &snapshot.IssueFingerprint, &issues, &tlsEnabled, &tlsValid,
			&snapshot.LoadTimeMs, &snapshot.RawResult)
		if err != nil {
			return nil, errorwrapper.NewStorageError("snapshot query", err)
		}
		snapshot.Timestamp = time.UnixMilli(ts).UTC()
		snapshot.TLS = models.TLSInfo{Enabled: tlsEnabled != 0, Valid: tlsValid != 0}
		if categories.Valid && categories.String != "" {
			if err := json.Unmarshal([]byte(categories.String), &snapshot.CategoryScores); err != nil {
				return nil, errorwrapper.NewStorageError("snapshot query", err)
			}
		}
		if issues.Valid && issues.String != "" {
			if err := json.Unmarshal([]byte(issues.String), &snapshot.Issues); err != nil {
				return nil, errorwrapper.NewStorageError("snapshot query", err)
			}
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, rows.Err()
}
