package config

// StorageConfig selects and configures the persistent store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend      string `json:"backend,omitempty" yaml:"backend,omitempty" validate:"omitempty,oneof=memory sqlite"`
	SQLiteDBPath string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty"`
	// ArchivePath is the directory where the retention job writes parquet
	// archives of pruned snapshots.
	ArchivePath      string `json:"archive_path,omitempty" yaml:"archive_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd snappy gzip none"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:          DefaultStorageBackend,
		SQLiteDBPath:     DefaultStorageSQLitePath,
		ArchivePath:      DefaultStorageArchivePath,
		CompressionCodec: DefaultStorageArchiveCodec,
	}
}
