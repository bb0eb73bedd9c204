package datastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// ParquetSnapshotRecord defines the schema for archived snapshots. Category
// scores and issues are stored as JSON strings; timestamps as Unix millis.
type ParquetSnapshotRecord struct {
	ScanID             string  `parquet:"scan_id"`
	TargetID           string  `parquet:"target_id"`
	Timestamp          int64   `parquet:"timestamp"`
	OverallScore       float64 `parquet:"overall_score"`
	CategoryScoresJSON *string `parquet:"category_scores_json,optional"`
	IssueFingerprint   string  `parquet:"issue_fingerprint"`
	IssuesJSON         *string `parquet:"issues_json,optional"`
	TLSEnabled         bool    `parquet:"tls_enabled"`
	TLSValid           bool    `parquet:"tls_valid"`
	LoadTimeMs         int64   `parquet:"load_time_ms"`
}

// SnapshotArchiver writes pruned snapshots to parquet files so history
// removed from the live store is still auditable.
type SnapshotArchiver struct {
	cfg    *config.StorageConfig
	logger zerolog.Logger
}

// NewSnapshotArchiver creates a new SnapshotArchiver.
func NewSnapshotArchiver(cfg *config.StorageConfig, logger zerolog.Logger) *SnapshotArchiver {
	return &SnapshotArchiver{
		cfg:    cfg,
		logger: logger.With().Str("component", "SnapshotArchiver").Logger(),
	}
}

// Archive writes the given snapshots to a timestamped parquet file under the
// configured archive path. Returns the file path written.
func (sa *SnapshotArchiver) Archive(snapshots []*models.ScanSnapshot) (string, error) {
	if len(snapshots) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(sa.cfg.ArchivePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	fileName := fmt.Sprintf("snapshots_%s.parquet", time.Now().Format("20060102-150405"))
	filePath := filepath.Join(sa.cfg.ArchivePath, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[ParquetSnapshotRecord](file, sa.compressionOption())

	records := make([]ParquetSnapshotRecord, 0, len(snapshots))
	for _, snapshot := range snapshots {
		record, err := toParquetRecord(snapshot)
		if err != nil {
			sa.logger.Warn().Err(err).Str("scan_id", snapshot.ScanID).Msg("Skipping snapshot that failed to serialize for archive")
			continue
		}
		records = append(records, record)
	}

	if _, err := writer.Write(records); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write archive records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive writer: %w", err)
	}

	sa.logger.Info().Int("records", len(records)).Str("file", filePath).Msg("Archived pruned snapshots")
	return filePath, nil
}

func (sa *SnapshotArchiver) compressionOption() parquet.WriterOption {
	switch sa.cfg.CompressionCodec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}

func toParquetRecord(snapshot *models.ScanSnapshot) (ParquetSnapshotRecord, error) {
	record := ParquetSnapshotRecord{
		ScanID:           snapshot.ScanID,
		TargetID:         snapshot.TargetID,
		Timestamp:        snapshot.Timestamp.UnixMilli(),
		OverallScore:     snapshot.OverallScore,
		IssueFingerprint: snapshot.IssueFingerprint,
		TLSEnabled:       snapshot.TLS.Enabled,
		TLSValid:         snapshot.TLS.Valid,
		LoadTimeMs:       snapshot.LoadTimeMs,
	}

	if len(snapshot.CategoryScores) > 0 {
		data, err := json.Marshal(snapshot.CategoryScores)
		if err != nil {
			return record, err
		}
		s := string(data)
		record.CategoryScoresJSON = &s
	}
	if len(snapshot.Issues) > 0 {
		data, err := json.Marshal(snapshot.Issues)
		if err != nil {
			return record, err
		}
		s := string(data)
		record.IssuesJSON = &s
	}
	return record, nil
}
