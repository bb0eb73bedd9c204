package config

// SchedulerConfig defines configuration for the monitoring scheduler.
type SchedulerConfig struct {
	// TickSeconds is the fixed driver interval; the shortest supported
	// cadence unit. Due targets are selected once per tick.
	TickSeconds         int  `json:"tick_seconds,omitempty" yaml:"tick_seconds,omitempty" validate:"omitempty,min=1"`
	MaxConcurrentScans  int  `json:"max_concurrent_scans,omitempty" yaml:"max_concurrent_scans,omitempty" validate:"omitempty,min=1"`
	ShutdownGraceSecs   int  `json:"shutdown_grace_secs,omitempty" yaml:"shutdown_grace_secs,omitempty" validate:"omitempty,min=1"`
	RunImmediateOnStart bool `json:"run_immediate_on_start" yaml:"run_immediate_on_start"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickSeconds:         DefaultSchedulerTickSeconds,
		MaxConcurrentScans:  DefaultSchedulerMaxConcurrent,
		ShutdownGraceSecs:   DefaultSchedulerShutdownSecs,
		RunImmediateOnStart: DefaultSchedulerStartImmediate,
	}
}
