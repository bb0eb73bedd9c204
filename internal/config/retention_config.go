package config

// RetentionConfig defines how long history is kept and how often the
// retention job sweeps.
type RetentionConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// RetentionDays is the age after which superseded snapshots and resolved
	// alerts become eligible for pruning.
	RetentionDays      int  `json:"retention_days,omitempty" yaml:"retention_days,omitempty" validate:"omitempty,min=1"`
	SweepIntervalMins  int  `json:"sweep_interval_mins,omitempty" yaml:"sweep_interval_mins,omitempty" validate:"omitempty,min=1"`
	ArchiveBeforePrune bool `json:"archive_before_prune" yaml:"archive_before_prune"`
}

// NewDefaultRetentionConfig creates default retention configuration
func NewDefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:            true,
		RetentionDays:      DefaultRetentionDays,
		SweepIntervalMins:  DefaultRetentionSweepInterval,
		ArchiveBeforePrune: true,
	}
}
