package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/complywatch/complywatch/internal/alerting"
	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/differ"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/complywatch/complywatch/internal/notifier"
	"github.com/complywatch/complywatch/internal/registry"
	"github.com/complywatch/complywatch/internal/scanner"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns queued results or failures in order.
type scriptedProvider struct {
	mu      sync.Mutex
	results []*models.ScanResult
	errs    []error
}

func (sp *scriptedProvider) push(result *models.ScanResult, err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.results = append(sp.results, result)
	sp.errs = append(sp.errs, err)
}

func (sp *scriptedProvider) Scan(_ context.Context, _ string) (*models.ScanResult, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.results) == 0 {
		return nil, models.NewScanFailure("", "", models.FailureTransient, "no scripted result", nil)
	}
	result, err := sp.results[0], sp.errs[0]
	sp.results, sp.errs = sp.results[1:], sp.errs[1:]
	return result, err
}

type capturingTransport struct {
	mu       sync.Mutex
	payloads []notifier.AlertPayload
}

func (ct *capturingTransport) ChannelID() string { return "ops" }

func (ct *capturingTransport) Send(_ context.Context, payload notifier.AlertPayload) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.payloads = append(ct.payloads, payload)
	return nil
}

func (ct *capturingTransport) received() []notifier.AlertPayload {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return append([]notifier.AlertPayload(nil), ct.payloads...)
}

type serviceFixture struct {
	service   *MonitoringService
	provider  *scriptedProvider
	transport *capturingTransport
	targets   *datastore.MemoryTargetStore
	snapshots *datastore.MemorySnapshotStore
	alerts    *datastore.MemoryAlertStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := zerolog.Nop()

	targets := datastore.NewMemoryTargetStore()
	snapshots := datastore.NewMemorySnapshotStore()
	alerts := datastore.NewMemoryAlertStore()
	provider := &scriptedProvider{}
	transport := &capturingTransport{}

	scanCfg := config.NewDefaultScanConfig()
	orch := scanner.NewScanOrchestrator(&scanCfg, provider, targets, snapshots, logger)
	detector := differ.NewChangeDetector(config.NewDefaultDetectorConfig(), logger)
	engine := alerting.NewAlertEngine(config.NewDefaultDetectorConfig(), alerts, logger)

	dispatcher, err := notifier.NewAlertDispatcher(config.NewDefaultNotificationConfig(), alerts, logger)
	require.NoError(t, err)
	dispatcher.RegisterTransport(transport)

	targetRegistry := registry.NewTargetRegistry(targets, logger)
	service := NewMonitoringService(targetRegistry, snapshots, alerts, orch, detector, engine, dispatcher, logger)

	return &serviceFixture{
		service:   service,
		provider:  provider,
		transport: transport,
		targets:   targets,
		snapshots: snapshots,
		alerts:    alerts,
	}
}

func (f *serviceFixture) register(t *testing.T) *models.MonitoringTarget {
	t.Helper()
	target, err := f.service.RegisterTarget(context.Background(), registry.RegisterRequest{
		URL:                 "https://example.com",
		OwnerID:             "owner-1",
		Cadence:             models.CadenceDaily,
		ComplianceThreshold: 70,
		NotifyEnabled:       true,
		NotifyChannels:      []string{"ops"},
	})
	require.NoError(t, err)
	return target
}

func goodResult() *models.ScanResult {
	return &models.ScanResult{
		OverallScore:   90,
		CategoryScores: map[string]float64{"privacy": 85, "accessibility": 80},
		TLS:            models.TLSInfo{Enabled: true, Valid: true},
		LoadTimeMs:     1200,
	}
}

func TestProcessTarget_FirstScanStoresSnapshotNoAlerts(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)
	fixture.provider.push(goodResult(), nil)

	err := fixture.service.ProcessTarget(context.Background(), target)

	require.NoError(t, err)
	stored, err := fixture.snapshots.Latest(context.Background(), target.ID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Empty(t, fixture.transport.received())
}

func TestProcessTarget_DegradationRaisesAndNotifies(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)

	fixture.provider.push(goodResult(), nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	degraded := goodResult()
	degraded.OverallScore = 55
	degraded.TLS = models.TLSInfo{Enabled: true, Valid: false}
	fixture.provider.push(degraded, nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	open, err := fixture.alerts.ListByTarget(context.Background(), target.ID, true)
	require.NoError(t, err)
	types := map[models.AlertType]bool{}
	for _, alert := range open {
		types[alert.Type] = true
	}
	assert.True(t, types[models.AlertComplianceDrop])
	assert.True(t, types[models.AlertTLSIssue])
	// score_delta high + tls_changed high co-occur.
	assert.True(t, types[models.AlertCriticalChange])
	assert.NotEmpty(t, fixture.transport.received())
}

func TestProcessTarget_ScanFailureRaisesScanFailedAlert(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)
	fixture.provider.push(nil, models.NewScanFailure("", target.URL, models.FailureTransient, "provider unreachable", nil))

	err := fixture.service.ProcessTarget(context.Background(), target)

	require.Error(t, err)
	open, listErr := fixture.alerts.ListByTarget(context.Background(), target.ID, true)
	require.NoError(t, listErr)
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertScanFailed, open[0].Type)

	stored, snapErr := fixture.snapshots.Latest(context.Background(), target.ID, 10)
	require.NoError(t, snapErr)
	assert.Empty(t, stored)
}

func TestProcessTarget_RecoveryResolvesScanFailed(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)

	fixture.provider.push(nil, models.NewScanFailure("", target.URL, models.FailureTransient, "provider unreachable", nil))
	require.Error(t, fixture.service.ProcessTarget(context.Background(), target))

	fixture.provider.push(goodResult(), nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	open, err := fixture.alerts.ListByTarget(context.Background(), target.ID, true)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGetHistory_NewestFirstSummaries(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)

	first := goodResult()
	fixture.provider.push(first, nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	second := goodResult()
	second.OverallScore = 80
	fixture.provider.push(second, nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	summaries, err := fixture.service.GetHistory(context.Background(), target.ID, time.Time{})

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 80.0, summaries[0].OverallScore)
	assert.Equal(t, 90.0, summaries[1].OverallScore)
}

func TestGetHistory_UnknownTargetFails(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.GetHistory(context.Background(), "missing", time.Time{})

	assert.Error(t, err)
}

func TestGetTargetStatus_TrendAndAverages(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)

	for _, score := range []float64{60, 65, 90, 92, 94} {
		result := goodResult()
		result.OverallScore = score
		fixture.provider.push(result, nil)
		require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))
	}

	status, err := fixture.service.GetTargetStatus(context.Background(), target.ID)

	require.NoError(t, err)
	assert.Equal(t, models.TrendStable, status.Trend)
	assert.InDelta(t, 80.2, status.AverageScore, 0.01)
	assert.NotNil(t, status.LastScanAt)
}

func TestGetTargetStatus_NoScansYet(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)

	status, err := fixture.service.GetTargetStatus(context.Background(), target.ID)

	require.NoError(t, err)
	assert.Equal(t, models.TrendUnknown, status.Trend)
	assert.Zero(t, status.AverageScore)
	assert.Zero(t, status.OpenAlertCount)
}

func TestGetSystemStatus_Counts(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)
	fixture.provider.push(goodResult(), nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	status, err := fixture.service.GetSystemStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, status.ActiveTargets)
	assert.Equal(t, int64(1), status.TotalScans)
	assert.Zero(t, status.OpenAlerts)
}

func TestRemoveTarget_DisablesButKeepsHistory(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)
	fixture.provider.push(goodResult(), nil)
	require.NoError(t, fixture.service.ProcessTarget(context.Background(), target))

	require.NoError(t, fixture.service.RemoveTarget(context.Background(), target.ID))

	disabled, err := fixture.service.GetTarget(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	summaries, err := fixture.service.GetHistory(context.Background(), target.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestResolveAlert_Manually(t *testing.T) {
	fixture := newServiceFixture(t)
	target := fixture.register(t)
	fixture.provider.push(nil, models.NewScanFailure("", target.URL, models.FailurePermanent, "malformed target URL", nil))
	require.Error(t, fixture.service.ProcessTarget(context.Background(), target))

	open, err := fixture.alerts.ListByTarget(context.Background(), target.ID, true)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, fixture.service.ResolveAlert(context.Background(), open[0].AlertID))

	open, err = fixture.alerts.ListByTarget(context.Background(), target.ID, true)
	require.NoError(t, err)
	assert.Empty(t, open)
}
