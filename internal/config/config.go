package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"gopkg.in/yaml.v3"
)

const (
	// Scheduler Defaults
	DefaultSchedulerTickSeconds    = 60
	DefaultSchedulerMaxConcurrent  = 5
	DefaultSchedulerShutdownSecs   = 30
	DefaultSchedulerStartImmediate = true

	// Scan Defaults
	DefaultScanTimeoutSecs = 30
	DefaultScanProviderURL = ""

	// Storage Defaults
	DefaultStorageBackend      = "memory"
	DefaultStorageSQLitePath   = "database/complywatch.db"
	DefaultStorageArchivePath  = "database/archive"
	DefaultStorageArchiveCodec = "zstd"

	// Retention Defaults
	DefaultRetentionDays          = 90
	DefaultRetentionSweepInterval = 24 * 60 // minutes

	// Notification Defaults
	DefaultNotifyTimeoutSecs = 10

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3
)

// GlobalConfig aggregates the per-concern configuration sections of the
// monitoring engine.
type GlobalConfig struct {
	SchedulerConfig       SchedulerConfig       `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	ScanConfig            ScanConfig            `json:"scan_config,omitempty" yaml:"scan_config,omitempty"`
	DetectorConfig        DetectorConfig        `json:"detector_config,omitempty" yaml:"detector_config,omitempty"`
	NotificationConfig    NotificationConfig    `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
	StorageConfig         StorageConfig         `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	RetentionConfig       RetentionConfig       `json:"retention_config,omitempty" yaml:"retention_config,omitempty"`
	ResourceLimiterConfig ResourceLimiterConfig `json:"resource_limiter_config,omitempty" yaml:"resource_limiter_config,omitempty"`
	LogConfig             LogConfig             `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// NewDefaultGlobalConfig returns a GlobalConfig populated with defaults for
// every section.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		SchedulerConfig:       NewDefaultSchedulerConfig(),
		ScanConfig:            NewDefaultScanConfig(),
		DetectorConfig:        NewDefaultDetectorConfig(),
		NotificationConfig:    NewDefaultNotificationConfig(),
		StorageConfig:         NewDefaultStorageConfig(),
		RetentionConfig:       NewDefaultRetentionConfig(),
		ResourceLimiterConfig: NewDefaultResourceLimiterConfig(),
		LogConfig:             NewDefaultLogConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a YAML or JSON file. An empty
// path returns the defaults. YAML is chosen when the extension is .yaml/.yml.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()
	if providedPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(providedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorwrapper.NewValidationError("config_file", providedPath, "config file does not exist")
		}
		return nil, errorwrapper.WrapError(err, "failed to read config file")
	}

	if err := parseConfigContent(data, providedPath, cfg); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to parse config content")
	}

	return cfg, nil
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errorwrapper.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errorwrapper.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}
