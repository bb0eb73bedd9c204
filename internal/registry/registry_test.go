package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/complywatch/complywatch/internal/common/errorwrapper"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *TargetRegistry {
	return NewTargetRegistry(datastore.NewMemoryTargetStore(), zerolog.Nop())
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		URL:                 "https://example.com",
		OwnerID:             "owner-1",
		Cadence:             models.CadenceDaily,
		ComplianceThreshold: 70,
		NotifyEnabled:       true,
		NotifyChannels:      []string{"ops"},
	}
}

func TestRegister_AssignsIDAndEnables(t *testing.T) {
	reg := newTestRegistry()

	target, err := reg.Register(context.Background(), validRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, target.ID)
	assert.True(t, target.Enabled)
	assert.Nil(t, target.LastScanAt)
	assert.False(t, target.CreatedAt.IsZero())
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{name: "relative url", mutate: func(r *RegisterRequest) { r.URL = "/just/a/path" }},
		{name: "unsupported scheme", mutate: func(r *RegisterRequest) { r.URL = "ftp://example.com" }},
		{name: "empty url", mutate: func(r *RegisterRequest) { r.URL = "" }},
		{name: "bad cadence", mutate: func(r *RegisterRequest) { r.Cadence = "fortnightly" }},
		{name: "threshold above range", mutate: func(r *RegisterRequest) { r.ComplianceThreshold = 101 }},
		{name: "threshold below range", mutate: func(r *RegisterRequest) { r.ComplianceThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			req := validRequest()
			tt.mutate(&req)

			_, err := reg.Register(context.Background(), req)

			require.Error(t, err)
			assert.True(t, errors.Is(err, errorwrapper.ErrInvalidConfiguration))
		})
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	reg := newTestRegistry()
	target, err := reg.Register(context.Background(), validRequest())
	require.NoError(t, err)

	cadence := models.CadenceHourly
	threshold := 85.0
	updated, err := reg.Update(context.Background(), target.ID, models.TargetUpdate{
		Cadence:             &cadence,
		ComplianceThreshold: &threshold,
	})

	require.NoError(t, err)
	assert.Equal(t, models.CadenceHourly, updated.Cadence)
	assert.Equal(t, 85.0, updated.ComplianceThreshold)
	// Untouched fields survive.
	assert.Equal(t, "https://example.com", updated.URL)
	assert.True(t, updated.NotifyEnabled)
}

func TestUpdate_InvalidFieldRejectedWithoutSideEffects(t *testing.T) {
	reg := newTestRegistry()
	target, err := reg.Register(context.Background(), validRequest())
	require.NoError(t, err)

	badURL := "not a url"
	_, err = reg.Update(context.Background(), target.ID, models.TargetUpdate{URL: &badURL})
	require.Error(t, err)

	unchanged, err := reg.Get(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", unchanged.URL)
}

func TestUpdate_UnknownTargetIsNotFound(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Update(context.Background(), "missing", models.TargetUpdate{})

	assert.True(t, errors.Is(err, errorwrapper.ErrNotFound))
}

func TestDisable_RemovesFromActiveSet(t *testing.T) {
	reg := newTestRegistry()
	target, err := reg.Register(context.Background(), validRequest())
	require.NoError(t, err)

	require.NoError(t, reg.Disable(context.Background(), target.ID))

	active, err := reg.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	// The record itself is kept.
	disabled, err := reg.Get(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
}

func TestListByOwner(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Register(context.Background(), validRequest())
	require.NoError(t, err)

	other := validRequest()
	other.URL = "https://other.example.com"
	other.OwnerID = "owner-2"
	_, err = reg.Register(context.Background(), other)
	require.NoError(t, err)

	owned, err := reg.ListByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "owner-1", owned[0].OwnerID)
}
