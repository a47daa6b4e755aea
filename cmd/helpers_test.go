package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/station-planner/internal/geomath"
)

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 50.0, 8.27 ")
	require.NoError(t, err)
	assert.Equal(t, geomath.GeoPoint{Lat: 50.0, Lng: 8.27}, p)

	_, err = parsePoint("50.0")
	assert.Error(t, err)

	_, err = parsePoint("91,8")
	assert.ErrorIs(t, err, geomath.ErrInvalidCoordinate)
}

func TestParsePoints(t *testing.T) {
	pts, err := parsePoints("")
	require.NoError(t, err)
	assert.Empty(t, pts)

	pts, err = parsePoints("50,8;49.9,8.1")
	require.NoError(t, err)
	assert.Len(t, pts, 2)

	_, err = parsePoints("50,8;oops")
	assert.Error(t, err)
}

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("49.99,8.25,50.01,8.28")
	require.NoError(t, err)
	assert.Equal(t, geomath.BBox{MinLat: 49.99, MinLng: 8.25, MaxLat: 50.01, MaxLng: 8.28}, b)

	_, err = parseBBox("1,2,3")
	assert.Error(t, err)

	_, err = parseBBox("-95,0,10,10")
	assert.ErrorIs(t, err, geomath.ErrInvalidCoordinate)
}
