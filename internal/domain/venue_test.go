package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinates(t *testing.T) {
	cases := []struct {
		lat, lng        float64
		inRange, usable bool
	}{
		{39.9, 116.4, true, true},
		{-90, -180, true, true},
		{0, 116.4, true, false},
		{39.9, 0, true, false},
		{91, 116.4, false, false},
		{39.9, 181, false, false},
		{math.NaN(), 116.4, false, false},
		{math.Inf(1), 116.4, false, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.inRange, CoordinatesInRange(tc.lat, tc.lng), "lat=%v lng=%v", tc.lat, tc.lng)
		require.Equal(t, tc.usable, ValidCoordinates(tc.lat, tc.lng), "lat=%v lng=%v", tc.lat, tc.lng)
	}
}

func TestVenue_HasCoordinates(t *testing.T) {
	require.False(t, Venue{}.HasCoordinates())
	require.False(t, Venue{Location: &Location{}}.HasCoordinates())
	require.True(t, Venue{Location: &Location{Latitude: 39.9, Longitude: 116.4}}.HasCoordinates())
}
