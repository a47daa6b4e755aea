package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   int
	}{
		{"empty", Counts{}, 0},
		{
			"mixed",
			Counts{Schools: 5, Universities: 2, Shops: 10, BusStops: 4, RailStations: 2,
				StationsInRadius: 1, NearestStationMeters: 850, HasNearestStation: true},
			35,
		},
		{"penalty only", Counts{StationsInRadius: 5}, 0},
		{"penalty capped", Counts{Universities: 20, StationsInRadius: 50}, 33},
		{"bonus capped", Counts{NearestStationMeters: 9000, HasNearestStation: true}, 25},
		{"distance ignored without station", Counts{NearestStationMeters: 9000}, 0},
		{"large raw", Counts{Universities: 400}, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.counts)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestCounts_Raw(t *testing.T) {
	c := Counts{Schools: 1, Universities: 1, Shops: 2, BusStops: 2, RailStations: 2}
	assert.InDelta(t, 2+3+1+1+3, c.Raw(), 1e-12)

	c.StationsInRadius = 2
	c.NearestStationMeters = 149
	c.HasNearestStation = true
	assert.InDelta(t, 10+1-6, c.Raw(), 1e-12)
}
