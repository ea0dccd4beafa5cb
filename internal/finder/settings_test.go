package finder

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/profile"
)

// settingsCounter wraps a store and counts settings loads.
type settingsCounter struct {
	*countingStore
	settingsLoads atomic.Int32
}

func (c *settingsCounter) LoadSettings(ctx context.Context, userID string) (profile.Settings, error) {
	c.settingsLoads.Add(1)
	return c.Store.LoadSettings(ctx, userID)
}

func float(v float64) *float64 { return &v }

func TestSettings_DefaultsThenUpdate(t *testing.T) {
	t.Parallel()

	store := &settingsCounter{countingStore: newStore(t)}
	svc := newService(t, &fakeAggregator{result: sampleResult()}, store)
	ctx := t.Context()

	got, err := svc.Settings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.Defaults(), got)

	_, err = svc.Settings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.settingsLoads.Load(), "second read is cached")

	saved, err := svc.UpdateSettings(ctx, "u1", &profile.Update{Lat: float(37.8), Lng: float(-122.27)})
	require.NoError(t, err)
	require.True(t, saved.HasLocation())
	assert.InDelta(t, profile.DefaultRadiusMiles, saved.RadiusMiles, 0)

	got, err = svc.Settings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved, got, "update refreshes the cached settings")
	assert.Equal(t, int32(1), store.settingsLoads.Load())

	saved, err = svc.UpdateSettings(ctx, "u1", &profile.Update{RadiusMiles: float(20)})
	require.NoError(t, err)
	assert.True(t, saved.HasLocation(), "location kept")
	assert.InDelta(t, 20, saved.RadiusMiles, 0)
}

func TestSettings_Errors(t *testing.T) {
	t.Parallel()

	noStore := newService(t, &fakeAggregator{result: sampleResult()}, nil)
	_, err := noStore.Settings(t.Context(), "u1")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	svc := newService(t, &fakeAggregator{result: sampleResult()}, newStore(t))
	_, err = svc.UpdateSettings(t.Context(), "u1", &profile.Update{})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = svc.UpdateSettings(t.Context(), "u1", &profile.Update{Lng: float(3)})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = svc.UpdateSettings(t.Context(), "u1", &profile.Update{RadiusMiles: float(100)})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestWithSettingsStore_Overrides(t *testing.T) {
	t.Parallel()

	settingsOnly := newStore(t)
	svc := newService(t, &fakeAggregator{result: sampleResult()}, nil, WithSettingsStore(settingsOnly.Store))

	_, err := svc.UpdateSettings(t.Context(), "u1", &profile.Update{RadiusMiles: float(3)})
	require.NoError(t, err)

	stored, err := settingsOnly.LoadSettings(t.Context(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 3, stored.RadiusMiles, 0)
}

func TestSpeciesPhotos_Validates(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeAggregator{result: sampleResult()}, nil)
	_, err := svc.SpeciesPhotos(t.Context(), "", []string{"S1"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	_, err = svc.SpeciesPhotos(t.Context(), "amerob", nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	photos, err := svc.SpeciesPhotos(t.Context(), "amerob", []string{"S1", "S2"})
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "amerob/S1", photos[0].URL)
}
