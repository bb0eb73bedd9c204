package notifier

import (
	"context"
	"net/http"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
)

// AlertDispatcher fans newly created alerts out to the channels a target
// subscribes to. Delivery is best effort and time boxed: a slow or failing
// channel is logged and skipped, never propagated into the scan pipeline.
type AlertDispatcher struct {
	cfg        config.NotificationConfig
	transports map[string]Transport
	alerts     datastore.AlertRepository
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewAlertDispatcher builds a dispatcher with one webhook transport per
// configured channel.
func NewAlertDispatcher(
	cfg config.NotificationConfig,
	alerts datastore.AlertRepository,
	logger zerolog.Logger,
) (*AlertDispatcher, error) {
	timeout := time.Duration(cfg.SendTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultNotifyTimeoutSecs) * time.Second
	}

	dispatcherLogger := logger.With().Str("component", "AlertDispatcher").Logger()
	httpClient := &http.Client{Timeout: timeout}

	transports := make(map[string]Transport, len(cfg.WebhookChannels))
	for _, channel := range cfg.WebhookChannels {
		transport, err := NewWebhookTransport(channel.ChannelID, channel.WebhookURL, httpClient, logger)
		if err != nil {
			return nil, err
		}
		transports[channel.ChannelID] = transport
	}

	return &AlertDispatcher{
		cfg:        cfg,
		transports: transports,
		alerts:     alerts,
		timeout:    timeout,
		logger:     dispatcherLogger,
	}, nil
}

// RegisterTransport adds or replaces a transport, keyed by its channel id.
// Used for non-webhook channels and by tests.
func (ad *AlertDispatcher) RegisterTransport(transport Transport) {
	ad.transports[transport.ChannelID()] = transport
}

// Dispatch sends each alert to every channel the target subscribes to and
// marks the alert notified when at least one channel accepted it. Unknown
// channel ids are logged and skipped.
func (ad *AlertDispatcher) Dispatch(ctx context.Context, target *models.MonitoringTarget, alerts []*models.Alert) {
	if !ad.cfg.Enabled || !target.NotifyEnabled || len(alerts) == 0 {
		return
	}
	if len(target.NotifyChannels) == 0 {
		ad.logger.Debug().Str("target_id", target.ID).Msg("Target has no notification channels configured")
		return
	}

	for _, alert := range alerts {
		payload := AlertPayload{
			Alert:     alert,
			TargetURL: target.URL,
			Mentions:  ad.cfg.MentionRoleIDs,
		}

		delivered := 0
		for _, channelID := range target.NotifyChannels {
			transport, ok := ad.transports[channelID]
			if !ok {
				ad.logger.Warn().
					Str("target_id", target.ID).
					Str("channel_id", channelID).
					Msg("Target references an unconfigured notification channel")
				continue
			}

			if err := ad.send(ctx, transport, payload); err != nil {
				ad.logger.Error().Err(err).
					Str("alert_id", alert.AlertID).
					Str("channel_id", channelID).
					Msg("Alert delivery failed")
				continue
			}
			delivered++
		}

		if delivered > 0 {
			if err := ad.alerts.MarkNotified(ctx, alert.AlertID, true); err != nil {
				ad.logger.Error().Err(err).Str("alert_id", alert.AlertID).Msg("Failed to mark alert notified")
			}
		}
		ad.logger.Info().
			Str("alert_id", alert.AlertID).
			Str("alert_type", string(alert.Type)).
			Int("delivered", delivered).
			Int("channels", len(target.NotifyChannels)).
			Msg("Alert dispatch finished")
	}
}

func (ad *AlertDispatcher) send(ctx context.Context, transport Transport, payload AlertPayload) error {
	sendCtx, cancel := context.WithTimeout(ctx, ad.timeout)
	defer cancel()
	return transport.Send(sendCtx, payload)
}
