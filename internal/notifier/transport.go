package notifier

import (
	"context"

	"github.com/complywatch/complywatch/internal/models"
)

// AlertPayload is the channel-independent notification content built from an
// alert before a transport renders it onto the wire.
type AlertPayload struct {
	Alert     *models.Alert
	TargetURL string
	// Mentions carries role/user identifiers the channel should ping for
	// high-severity alerts. Transports that have no mention concept ignore it.
	Mentions []string
}

// Transport delivers one alert payload to one configured channel. A failed
// delivery never affects scan or alert persistence; the dispatcher logs it
// and moves on.
type Transport interface {
	// ChannelID returns the identifier targets reference in NotifyChannels.
	ChannelID() string
	// Send delivers the payload. The context carries the per-send timeout.
	Send(ctx context.Context, payload AlertPayload) error
}
