package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	result *models.ScanResult
	err    error
}

func (sp *stubProvider) Scan(_ context.Context, _ string) (*models.ScanResult, error) {
	return sp.result, sp.err
}

func orchestratorFixture(t *testing.T, provider ScanProvider) (*ScanOrchestrator, *datastore.MemoryTargetStore, *datastore.MemorySnapshotStore) {
	t.Helper()
	targets := datastore.NewMemoryTargetStore()
	snapshots := datastore.NewMemorySnapshotStore()
	cfg := config.NewDefaultScanConfig()
	return NewScanOrchestrator(&cfg, provider, targets, snapshots, zerolog.Nop()), targets, snapshots
}

func monitoredTarget(t *testing.T, store *datastore.MemoryTargetStore) *models.MonitoringTarget {
	t.Helper()
	target := &models.MonitoringTarget{
		ID:      "target-1",
		URL:     "https://example.com",
		Cadence: models.CadenceDaily,
		Enabled: true,
	}
	require.NoError(t, store.Create(context.Background(), target))
	return target
}

func TestRunScan_BuildsAndStoresSnapshot(t *testing.T) {
	provider := &stubProvider{result: &models.ScanResult{
		OverallScore:   82,
		CategoryScores: map[string]float64{"privacy": 75},
		Issues:         []models.Issue{{Category: "privacy", Severity: "high", StableID: "missing-policy"}},
		TLS:            models.TLSInfo{Enabled: true, Valid: true},
		LoadTimeMs:     1400,
		Raw:            []byte(`{"overall_score":82}`),
	}}
	orch, targets, snapshots := orchestratorFixture(t, provider)
	target := monitoredTarget(t, targets)

	snapshot, err := orch.RunScan(context.Background(), target)

	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.ScanID)
	assert.Equal(t, target.ID, snapshot.TargetID)
	assert.Equal(t, 82.0, snapshot.OverallScore)
	assert.Equal(t, IssueFingerprint(provider.result.Issues), snapshot.IssueFingerprint)
	assert.NotEmpty(t, snapshot.RawResult)

	stored, err := snapshots.Latest(context.Background(), target.ID, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, snapshot.ScanID, stored[0].ScanID)
}

func TestRunScan_TouchesLastScanEvenOnFailure(t *testing.T) {
	provider := &stubProvider{err: models.NewScanFailure("", "https://example.com", models.FailureTransient, "provider unreachable", nil)}
	orch, targets, snapshots := orchestratorFixture(t, provider)
	target := monitoredTarget(t, targets)

	_, err := orch.RunScan(context.Background(), target)

	var failure *models.ScanFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, target.ID, failure.TargetID)

	updated, getErr := targets.Get(context.Background(), target.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, updated.LastScanAt)

	stored, snapErr := snapshots.Latest(context.Background(), target.ID, 1)
	require.NoError(t, snapErr)
	assert.Empty(t, stored)
}

func TestRunScan_UnclassifiedErrorBecomesTransient(t *testing.T) {
	provider := &stubProvider{err: assert.AnError}
	orch, targets, _ := orchestratorFixture(t, provider)
	target := monitoredTarget(t, targets)

	_, err := orch.RunScan(context.Background(), target)

	var failure *models.ScanFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.IsTransient())
	assert.Equal(t, target.URL, failure.URL)
}

// ctxCheckingSnapshotStore refuses writes on a cancelled context, the way a
// database-backed store does.
type ctxCheckingSnapshotStore struct {
	*datastore.MemorySnapshotStore
}

func (cs *ctxCheckingSnapshotStore) Append(ctx context.Context, snapshot *models.ScanSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return cs.MemorySnapshotStore.Append(ctx, snapshot)
}

type cancellingProvider struct {
	cancel context.CancelFunc
	result *models.ScanResult
}

func (cp *cancellingProvider) Scan(_ context.Context, _ string) (*models.ScanResult, error) {
	cp.cancel()
	return cp.result, nil
}

func TestRunScan_PersistsSnapshotAfterShutdownCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &cancellingProvider{
		cancel: cancel,
		result: &models.ScanResult{OverallScore: 77, TLS: models.TLSInfo{Enabled: true, Valid: true}},
	}
	targets := datastore.NewMemoryTargetStore()
	snapshots := &ctxCheckingSnapshotStore{MemorySnapshotStore: datastore.NewMemorySnapshotStore()}
	cfg := config.NewDefaultScanConfig()
	orch := NewScanOrchestrator(&cfg, provider, targets, snapshots, zerolog.Nop())
	target := monitoredTarget(t, targets)

	snapshot, err := orch.RunScan(ctx, target)

	require.NoError(t, err)
	require.NotNil(t, snapshot)

	stored, err := snapshots.Latest(context.Background(), target.ID, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, snapshot.ScanID, stored[0].ScanID)
}

func TestRunScan_SnapshotTimestampsAdvance(t *testing.T) {
	provider := &stubProvider{result: &models.ScanResult{OverallScore: 90, TLS: models.TLSInfo{Enabled: true, Valid: true}}}
	orch, targets, snapshots := orchestratorFixture(t, provider)
	target := monitoredTarget(t, targets)

	first, err := orch.RunScan(context.Background(), target)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := orch.RunScan(context.Background(), target)
	require.NoError(t, err)

	assert.True(t, second.Timestamp.After(first.Timestamp))

	stored, err := snapshots.Latest(context.Background(), target.ID, 2)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, second.ScanID, stored[0].ScanID)
}
