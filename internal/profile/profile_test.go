package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/errors"
)

func ptr(v float64) *float64 { return &v }

func TestUpdate_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		update  Update
		wantErr string
	}{
		{name: "empty", update: Update{}},
		{name: "location", update: Update{Lat: ptr(37.8), Lng: ptr(-122.27)}},
		{name: "zero location", update: Update{Lat: ptr(0), Lng: ptr(0)}},
		{name: "radius bounds", update: Update{RadiusMiles: ptr(25)}},
		{name: "lat without lng", update: Update{Lat: ptr(10)}, wantErr: "lat and lng must be set together"},
		{name: "lat out of range", update: Update{Lat: ptr(91), Lng: ptr(0)}, wantErr: "lat is out of range"},
		{name: "lng out of range", update: Update{Lat: ptr(0), Lng: ptr(-181)}, wantErr: "lng is out of range"},
		{name: "radius too small", update: Update{RadiusMiles: ptr(0.5)}, wantErr: "radiusMiles is out of range"},
		{name: "radius too large", update: Update{RadiusMiles: ptr(26)}, wantErr: "radiusMiles is out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.update.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestSettings_Apply(t *testing.T) {
	t.Parallel()

	s := Defaults()
	assert.False(t, s.HasLocation())
	assert.InDelta(t, DefaultRadiusMiles, s.RadiusMiles, 0)

	s = s.Apply(&Update{RadiusMiles: ptr(5)})
	assert.False(t, s.HasLocation())
	assert.InDelta(t, 5, s.RadiusMiles, 0)

	lat, lng := 37.8, -122.27
	u := Update{Lat: &lat, Lng: &lng}
	s = s.Apply(&u)
	require.True(t, s.HasLocation())
	assert.InDelta(t, 37.8, *s.Lat, 0)
	assert.InDelta(t, 5, s.RadiusMiles, 0, "radius kept")

	// Settings do not alias the update
	lat = 0
	assert.InDelta(t, 37.8, *s.Lat, 0)
	assert.True(t, (&Update{}).IsEmpty())
	assert.False(t, u.IsEmpty())
}
