package config

// WebhookChannelConfig maps a channel identifier to a webhook endpoint.
type WebhookChannelConfig struct {
	ChannelID  string `json:"channel_id" yaml:"channel_id" validate:"required"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" validate:"required,url"`
}

// NotificationConfig defines configuration for alert delivery.
type NotificationConfig struct {
	Enabled         bool                   `json:"enabled" yaml:"enabled"`
	SendTimeoutSecs int                    `json:"send_timeout_secs,omitempty" yaml:"send_timeout_secs,omitempty" validate:"omitempty,min=1"`
	WebhookChannels []WebhookChannelConfig `json:"webhook_channels,omitempty" yaml:"webhook_channels,omitempty" validate:"omitempty,dive"`
	MentionRoleIDs  []string               `json:"mention_role_ids,omitempty" yaml:"mention_role_ids,omitempty"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Enabled:         true,
		SendTimeoutSecs: DefaultNotifyTimeoutSecs,
		WebhookChannels: []WebhookChannelConfig{},
		MentionRoleIDs:  []string{},
	}
}
