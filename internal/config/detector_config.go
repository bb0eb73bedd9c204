package config

// DetectorConfig is the policy table of the change detector. The thresholds
// default globally; per-target overrides are a later iteration.
type DetectorConfig struct {
	// ScoreDeltaMin is the minimum absolute overall-score movement that
	// produces a score_delta change.
	ScoreDeltaMin        float64 `json:"score_delta_min,omitempty" yaml:"score_delta_min,omitempty" validate:"omitempty,min=0"`
	ScoreDeltaMediumMin  float64 `json:"score_delta_medium_min,omitempty" yaml:"score_delta_medium_min,omitempty" validate:"omitempty,min=0"`
	ScoreDeltaHighMin    float64 `json:"score_delta_high_min,omitempty" yaml:"score_delta_high_min,omitempty" validate:"omitempty,min=0"`
	CategoryDeltaMin     float64 `json:"category_delta_min,omitempty" yaml:"category_delta_min,omitempty" validate:"omitempty,min=0"`
	CategoryDeltaHighMin float64 `json:"category_delta_high_min,omitempty" yaml:"category_delta_high_min,omitempty" validate:"omitempty,min=0"`
	// LoadTimeDeltaMsMin is the minimum absolute load-time movement (ms)
	// that produces a performance_delta change.
	LoadTimeDeltaMsMin     int64 `json:"load_time_delta_ms_min,omitempty" yaml:"load_time_delta_ms_min,omitempty" validate:"omitempty,min=0"`
	LoadTimeDeltaMsHighMin int64 `json:"load_time_delta_ms_high_min,omitempty" yaml:"load_time_delta_ms_high_min,omitempty" validate:"omitempty,min=0"`
	// CriticalChangeHighCount is the number of co-occurring high-severity
	// changes in one scan that escalates to a critical_change alert.
	CriticalChangeHighCount int `json:"critical_change_high_count,omitempty" yaml:"critical_change_high_count,omitempty" validate:"omitempty,min=1"`
	// SlowLoadTimeMs is the absolute load time above which a
	// performance_issue alert fires regardless of movement.
	SlowLoadTimeMs int64 `json:"slow_load_time_ms,omitempty" yaml:"slow_load_time_ms,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultDetectorConfig creates the default detection policy.
func NewDefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ScoreDeltaMin:           5,
		ScoreDeltaMediumMin:     10,
		ScoreDeltaHighMin:       20,
		CategoryDeltaMin:        10,
		CategoryDeltaHighMin:    30,
		LoadTimeDeltaMsMin:      1000,
		LoadTimeDeltaMsHighMin:  3000,
		CriticalChangeHighCount: 2,
		SlowLoadTimeMs:          5000,
	}
}
