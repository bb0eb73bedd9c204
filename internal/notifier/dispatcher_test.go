package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	channelID string
	mu        sync.Mutex
	payloads  []AlertPayload
	fail      bool
}

func (rt *recordingTransport) ChannelID() string { return rt.channelID }

func (rt *recordingTransport) Send(_ context.Context, payload AlertPayload) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.fail {
		return assert.AnError
	}
	rt.payloads = append(rt.payloads, payload)
	return nil
}

func (rt *recordingTransport) received() []AlertPayload {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]AlertPayload(nil), rt.payloads...)
}

func newTestDispatcher(t *testing.T, cfg config.NotificationConfig) (*AlertDispatcher, *datastore.MemoryAlertStore) {
	t.Helper()
	store := datastore.NewMemoryAlertStore()
	dispatcher, err := NewAlertDispatcher(cfg, store, zerolog.Nop())
	require.NoError(t, err)
	return dispatcher, store
}

func notifyTarget(channels ...string) *models.MonitoringTarget {
	return &models.MonitoringTarget{
		ID:             "target-1",
		URL:            "https://example.com",
		Enabled:        true,
		NotifyEnabled:  true,
		NotifyChannels: channels,
	}
}

func openAlert(store *datastore.MemoryAlertStore, t *testing.T) *models.Alert {
	t.Helper()
	alert := &models.Alert{
		AlertID:   "alert-1",
		TargetID:  "target-1",
		Type:      models.AlertComplianceDrop,
		Severity:  models.SeverityHigh,
		Title:     "Compliance score below threshold",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), alert))
	return alert
}

func TestDispatch_DeliversAndMarksNotified(t *testing.T) {
	dispatcher, store := newTestDispatcher(t, config.NewDefaultNotificationConfig())
	transport := &recordingTransport{channelID: "ops"}
	dispatcher.RegisterTransport(transport)
	alert := openAlert(store, t)

	dispatcher.Dispatch(context.Background(), notifyTarget("ops"), []*models.Alert{alert})

	received := transport.received()
	require.Len(t, received, 1)
	assert.Equal(t, alert.AlertID, received[0].Alert.AlertID)
	assert.Equal(t, "https://example.com", received[0].TargetURL)

	stored, err := store.Get(context.Background(), alert.AlertID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
}

func TestDispatch_FailedChannelDoesNotMarkNotified(t *testing.T) {
	dispatcher, store := newTestDispatcher(t, config.NewDefaultNotificationConfig())
	dispatcher.RegisterTransport(&recordingTransport{channelID: "ops", fail: true})
	alert := openAlert(store, t)

	dispatcher.Dispatch(context.Background(), notifyTarget("ops"), []*models.Alert{alert})

	stored, err := store.Get(context.Background(), alert.AlertID)
	require.NoError(t, err)
	assert.False(t, stored.NotificationSent)
}

func TestDispatch_OneSuccessAmongFailuresMarksNotified(t *testing.T) {
	dispatcher, store := newTestDispatcher(t, config.NewDefaultNotificationConfig())
	dispatcher.RegisterTransport(&recordingTransport{channelID: "broken", fail: true})
	working := &recordingTransport{channelID: "ops"}
	dispatcher.RegisterTransport(working)
	alert := openAlert(store, t)

	dispatcher.Dispatch(context.Background(), notifyTarget("broken", "ops"), []*models.Alert{alert})

	assert.Len(t, working.received(), 1)
	stored, err := store.Get(context.Background(), alert.AlertID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
}

func TestDispatch_RespectsTargetOptOut(t *testing.T) {
	dispatcher, store := newTestDispatcher(t, config.NewDefaultNotificationConfig())
	transport := &recordingTransport{channelID: "ops"}
	dispatcher.RegisterTransport(transport)
	alert := openAlert(store, t)

	target := notifyTarget("ops")
	target.NotifyEnabled = false
	dispatcher.Dispatch(context.Background(), target, []*models.Alert{alert})

	assert.Empty(t, transport.received())
}

func TestDispatch_UnknownChannelIsSkipped(t *testing.T) {
	dispatcher, store := newTestDispatcher(t, config.NewDefaultNotificationConfig())
	alert := openAlert(store, t)

	dispatcher.Dispatch(context.Background(), notifyTarget("nonexistent"), []*models.Alert{alert})

	stored, err := store.Get(context.Background(), alert.AlertID)
	require.NoError(t, err)
	assert.False(t, stored.NotificationSent)
}

func TestWebhookTransport_PostsAlertJSON(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport, err := NewWebhookTransport("ops", server.URL, server.Client(), zerolog.Nop())
	require.NoError(t, err)

	alert := &models.Alert{
		AlertID:   "alert-1",
		TargetID:  "target-1",
		Type:      models.AlertTLSIssue,
		Severity:  models.SeverityHigh,
		Title:     "TLS disabled or certificate invalid",
		CreatedAt: time.Now().UTC(),
	}
	err = transport.Send(context.Background(), AlertPayload{
		Alert:     alert,
		TargetURL: "https://example.com",
		Mentions:  []string{"role-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "alert-1", received.AlertID)
	assert.Equal(t, "tls_issue", received.AlertType)
	assert.Equal(t, "high", received.Severity)
	assert.Equal(t, "<@&role-1>", received.Mentions)
}

func TestWebhookTransport_NonSuccessStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	transport, err := NewWebhookTransport("ops", server.URL, server.Client(), zerolog.Nop())
	require.NoError(t, err)

	err = transport.Send(context.Background(), AlertPayload{
		Alert: &models.Alert{AlertID: "alert-1", Severity: models.SeverityLow},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewWebhookTransport_RejectsInvalidURL(t *testing.T) {
	_, err := NewWebhookTransport("ops", "not a url", nil, zerolog.Nop())
	assert.Error(t, err)
}
