package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection shared by the sqlite repositories.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDB initializes a new DB connection and ensures the schema is set up.
func NewDB(dataSourceName string, logger zerolog.Logger) (*DB, error) {
	dbLogger := logger.With().Str("component", "DB").Logger()
	dbLogger.Info().Str("db_path", dataSourceName).Msg("Initializing database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}

	db := &DB{
		db:     dbInstance,
		logger: dbLogger,
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	dbLogger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified")
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InitSchema creates the engine tables if they don't already exist. One table
// per entity; snapshot and alert rows carry the target_id foreign key and a
// monotonically increasing timestamp for ordering.
func (d *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		cadence TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		compliance_threshold REAL NOT NULL,
		notify_enabled INTEGER NOT NULL DEFAULT 0,
		notify_channels TEXT,
		last_scan_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		scan_id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		overall_score REAL NOT NULL,
		category_scores TEXT,
		issue_fingerprint TEXT NOT NULL,
		issues TEXT,
		tls_enabled INTEGER NOT NULL,
		tls_valid INTEGER NOT NULL,
		load_time_ms INTEGER NOT NULL,
		raw_result BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_target_ts ON snapshots(target_id, timestamp);

	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		created_at INTEGER NOT NULL,
		resolved_at INTEGER,
		notification_sent INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_target ON alerts(target_id, alert_type, resolved_at);
	`
	if _, err := d.db.Exec(query); err != nil {
		d.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}
