package spatialindex

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/station-planner/internal/geomath"
)

func randomItems(rng *rand.Rand, n int, box geomath.BBox) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID: fmt.Sprintf("s%d", i),
			Point: geomath.GeoPoint{
				Lat: box.MinLat + rng.Float64()*(box.MaxLat-box.MinLat),
				Lng: box.MinLng + rng.Float64()*(box.MaxLng-box.MinLng),
			},
		}
	}
	return items
}

func bruteForce(items []Item, target geomath.GeoPoint) []Neighbor {
	out := make([]Neighbor, len(items))
	for i, it := range items {
		out[i] = Neighbor{Item: it, Index: i, DistanceMeters: geomath.HaversineMeters(target, it.Point)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out
}

var mainz = geomath.BBox{MinLat: 49.95, MinLng: 8.15, MaxLat: 50.05, MaxLng: 8.35}

func TestKNearest_EmptyIndex(t *testing.T) {
	ix := New(nil)
	res := ix.KNearest(geomath.GeoPoint{Lat: 50, Lng: 8.27}, 3)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, 0, ix.Len())

	_, ok := ix.Nearest(geomath.GeoPoint{Lat: 50, Lng: 8.27})
	assert.False(t, ok)
}

func TestKNearest_NonPositiveK(t *testing.T) {
	ix := New([]Item{{ID: "a", Point: geomath.GeoPoint{Lat: 50, Lng: 8}}})
	assert.Empty(t, ix.KNearest(geomath.GeoPoint{Lat: 50, Lng: 8}, 0))
	assert.Empty(t, ix.KNearest(geomath.GeoPoint{Lat: 50, Lng: 8}, -2))
}

func TestKNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))

	for trial := 0; trial < 1000; trial++ {
		n := 1 + rng.IntN(500)
		items := randomItems(rng, n, mainz)
		ix := New(items)
		target := randomItems(rng, 1, mainz.Expand(2000))[0].Point

		got, ok := ix.Nearest(target)
		require.True(t, ok)
		want := bruteForce(items, target)[0]
		require.Equal(t, want.Index, got.Index, "trial %d n=%d", trial, n)
		require.Equal(t, want.DistanceMeters, got.DistanceMeters)
	}
}

func TestKNearest_OrderingAndCount(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	items := randomItems(rng, 300, mainz)
	ix := New(items)
	target := geomath.GeoPoint{Lat: 50.0, Lng: 8.27}

	for _, k := range []int{1, 2, 5, 17, 300, 1000} {
		got := ix.KNearest(target, k)
		want := bruteForce(items, target)
		if k < len(want) {
			want = want[:k]
		}
		require.Len(t, got, len(want))
		for i := range got {
			assert.Equal(t, want[i].Index, got[i].Index, "k=%d pos=%d", k, i)
			if i > 0 {
				assert.LessOrEqual(t, got[i-1].DistanceMeters, got[i].DistanceMeters)
			}
		}
	}
}

func TestKNearest_TiesKeepInputOrder(t *testing.T) {
	p := geomath.GeoPoint{Lat: 50.0, Lng: 8.27}
	items := []Item{
		{ID: "far", Point: geomath.GeoPoint{Lat: 50.1, Lng: 8.27}},
		{ID: "dup-a", Point: p},
		{ID: "dup-b", Point: p},
		{ID: "dup-c", Point: p},
	}
	ix := New(items)

	got := ix.KNearest(p, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "dup-a", got[0].Item.ID)
	assert.Equal(t, "dup-b", got[1].Item.ID)

	got = ix.KNearest(p, 4)
	assert.Equal(t, []string{"dup-a", "dup-b", "dup-c", "far"},
		[]string{got[0].Item.ID, got[1].Item.ID, got[2].Item.ID, got[3].Item.ID})
}

func TestKNearest_AcrossAntimeridian(t *testing.T) {
	items := []Item{
		{ID: "west", Point: geomath.GeoPoint{Lat: 0, Lng: -179.99}},
		{ID: "mid-1", Point: geomath.GeoPoint{Lat: 0, Lng: 100}},
		{ID: "mid-2", Point: geomath.GeoPoint{Lat: 1, Lng: 120}},
		{ID: "mid-3", Point: geomath.GeoPoint{Lat: -1, Lng: 140}},
		{ID: "mid-4", Point: geomath.GeoPoint{Lat: 2, Lng: 160}},
		{ID: "east", Point: geomath.GeoPoint{Lat: 5, Lng: 170}},
	}
	ix := New(items)

	got, ok := ix.Nearest(geomath.GeoPoint{Lat: 0, Lng: 179.99})
	require.True(t, ok)
	assert.Equal(t, "west", got.Item.ID)
}

func TestKNearest_NearPole(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 8))
	polar := geomath.BBox{MinLat: 85, MinLng: -180, MaxLat: 89.9, MaxLng: 180}

	for trial := 0; trial < 200; trial++ {
		items := randomItems(rng, 1+rng.IntN(100), polar)
		ix := New(items)
		target := randomItems(rng, 1, polar)[0].Point

		got, _ := ix.Nearest(target)
		assert.Equal(t, bruteForce(items, target)[0].Index, got.Index, "trial %d", trial)
	}
}

func TestWithinRadius(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 4))
	items := randomItems(rng, 400, mainz)
	ix := New(items)
	target := geomath.GeoPoint{Lat: 50.0, Lng: 8.26}

	got := ix.WithinRadius(target, 1500)
	var want []int
	for _, n := range bruteForce(items, target) {
		if n.DistanceMeters <= 1500 {
			want = append(want, n.Index)
		}
	}
	gotIdx := make([]int, len(got))
	for i, n := range got {
		gotIdx[i] = n.Index
	}
	assert.Equal(t, want, gotIdx)
	assert.Empty(t, New(nil).WithinRadius(target, 1000))
}

func TestNew_CopiesInput(t *testing.T) {
	items := []Item{{ID: "a", Point: geomath.GeoPoint{Lat: 50, Lng: 8}}}
	ix := New(items)
	items[0].ID = "mutated"

	assert.Equal(t, "a", ix.Items()[0].ID)
}
