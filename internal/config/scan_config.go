package config

// ScanConfig defines configuration for scan provider calls.
type ScanConfig struct {
	// ProviderURL is the endpoint of the remote compliance scan service.
	// Empty means no HTTP provider is configured (a provider must then be
	// injected programmatically).
	ProviderURL string `json:"provider_url,omitempty" yaml:"provider_url,omitempty" validate:"omitempty,url"`
	TimeoutSecs int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultScanConfig creates default scan configuration
func NewDefaultScanConfig() ScanConfig {
	return ScanConfig{
		ProviderURL: DefaultScanProviderURL,
		TimeoutSecs: DefaultScanTimeoutSecs,
	}
}
