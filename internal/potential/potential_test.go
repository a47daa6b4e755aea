package potential

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/station-planner/internal/geomath"
)

var mainzBox = geomath.BBox{MinLat: 49.96, MinLng: 8.20, MaxLat: 50.02, MaxLng: 8.31}

func samples(t *testing.T) []geomath.GeoPoint {
	t.Helper()
	s, err := SampleGrid(mainzBox, 250, 0)
	require.NoError(t, err)
	require.NotEmpty(t, s.Points)
	return s.Points
}

func TestComputeHeatPoints_OnePerSample(t *testing.T) {
	pts := samples(t)
	heat := ComputeHeatPoints(pts, nil, DefaultWeights())

	require.Len(t, heat, len(pts))
	for i, h := range heat {
		assert.Equal(t, pts[i].Lat, h.Lat)
		assert.Equal(t, pts[i].Lng, h.Lng)
	}
	assert.Empty(t, ComputeHeatPoints(nil, nil, DefaultWeights()))
}

func TestComputeHeatPoints_Bounds(t *testing.T) {
	pts := samples(t)
	rng := rand.New(rand.NewPCG(4, 4))
	candidates := []geomath.GeoPoint{{Lat: 50.0, Lng: 8.26}, {Lat: 49.99, Lng: 8.24}}

	for trial := 0; trial < 100; trial++ {
		w := Weights{
			Population: rng.Float64() * 1.5,
			POI:        rng.Float64() * 1.5,
			Transit:    rng.Float64() * 1.5,
			Coverage:   rng.Float64() * 1.5,
		}
		cands := candidates
		if trial%3 == 0 {
			cands = nil
		}
		for _, h := range ComputeHeatPoints(pts, cands, w) {
			require.GreaterOrEqual(t, h.Intensity, 0.0)
			require.LessOrEqual(t, h.Intensity, MaxIntensity)
		}
	}
}

func TestComputeHeatPoints_ZeroWeights(t *testing.T) {
	pts := samples(t)

	for _, h := range ComputeHeatPoints(pts, nil, Weights{}) {
		assert.Zero(t, h.Intensity)
	}
	// Layers disabled: only the coverage boost remains.
	for _, h := range ComputeHeatPoints(pts, nil, Weights{Coverage: 0.5}) {
		assert.InDelta(t, 0.5, h.Intensity, 1e-12)
		assert.False(t, math.IsNaN(h.Intensity))
	}
}

func TestComputeHeatPoints_LayerPeakAtHotspot(t *testing.T) {
	hub := geomath.GeoPoint{Lat: 50.0, Lng: 8.27}
	m := NewModel(Layers{
		Population: Layer{Sigma: 400, Hotspots: []Hotspot{{Point: hub, Weight: 1}}},
		POI:        Layer{Sigma: 400},
		Transit:    Layer{Sigma: 400},
	})
	pts := []geomath.GeoPoint{hub, {Lat: 50.005, Lng: 8.27}, {Lat: 50.03, Lng: 8.27}}

	heat := m.ComputeHeatPoints(pts, nil, Weights{Population: 1})
	assert.InDelta(t, 1.0, heat[0].Intensity, 1e-12)
	assert.Greater(t, heat[1].Intensity, heat[2].Intensity)
	assert.InDelta(t, 0.0, heat[2].Intensity, 1e-12)
}

func TestComputeHeatPoints_ConstantLayerIsZero(t *testing.T) {
	m := NewModel(Layers{
		Population: Layer{Sigma: 400},
		POI:        Layer{Sigma: 400},
		Transit:    Layer{Sigma: 400},
	})
	heat := m.ComputeHeatPoints([]geomath.GeoPoint{{Lat: 50, Lng: 8}}, nil, Weights{Population: 1})
	assert.Zero(t, heat[0].Intensity)
}

func TestComputeHeatPoints_CandidateAdjustment(t *testing.T) {
	m := NewModel(Layers{Population: Layer{Sigma: 1}, POI: Layer{Sigma: 1}, Transit: Layer{Sigma: 1}})
	cand := geomath.GeoPoint{Lat: 50.0, Lng: 8.27}
	far := geomath.Destination(cand, 3000, 90)

	heat := m.ComputeHeatPoints([]geomath.GeoPoint{cand, far}, []geomath.GeoPoint{cand}, Weights{Coverage: 1})

	// On top of a candidate the close penalty dominates and is clamped away.
	assert.Zero(t, heat[0].Intensity)
	assert.InDelta(t, GapBoost(3000)-ClosePenalty*ClosePenaltyAt(3000), heat[1].Intensity, 1e-6)
	assert.Greater(t, heat[1].Intensity, 0.99)
}

func TestCoverageAdjustment(t *testing.T) {
	assert.InDelta(t, -0.6, CoverageAdjustment(0, 1), 1e-12)
	assert.InDelta(t, 1-math.Exp(-0.5), GapBoost(650), 1e-12)
	assert.InDelta(t, math.Exp(-0.5), ClosePenaltyAt(180), 1e-12)
	assert.Zero(t, CoverageAdjustment(500, 0))
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{}.Validate())
	assert.Error(t, Weights{POI: -0.1}.Validate())
	assert.Error(t, Weights{Transit: math.NaN()}.Validate())
	assert.Error(t, Weights{Coverage: math.Inf(1)}.Validate())
}

func TestSampleGrid(t *testing.T) {
	box := geomath.BBox{MinLat: 50.0, MinLng: 8.0, MaxLat: 50.01, MaxLng: 8.02}
	s, err := SampleGrid(box, 200, 0)
	require.NoError(t, err)

	assert.Equal(t, s.NX*s.NY, len(s.Points))
	assert.InDelta(t, box.MinLat+s.StepLat/2, s.Points[0].Lat, 1e-12)
	assert.InDelta(t, box.MinLng+s.StepLng/2, s.Points[0].Lng, 1e-12)
	for _, p := range s.Points {
		assert.True(t, box.Contains(p))
	}
	last := s.Points[s.Index(s.NX-1, s.NY-1)]
	assert.Equal(t, s.Points[len(s.Points)-1], last)
	// 1113 m of latitude at 200 m steps.
	assert.Equal(t, 6, s.NY)
}

func TestSampleGrid_Errors(t *testing.T) {
	_, err := SampleGrid(mainzBox, 0, 0)
	assert.Error(t, err)

	_, err = SampleGrid(mainzBox, 10, 1000)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrTooManySamples))

	_, err = SampleGrid(geomath.BBox{MinLat: -100, MaxLat: 0}, 100, 0)
	assert.Error(t, err)

	tiny, err := SampleGrid(geomath.BBox{MinLat: 50, MinLng: 8, MaxLat: 50.0001, MaxLng: 8.0001}, 500, 0)
	require.NoError(t, err)
	assert.Empty(t, tiny.Points)
}

func TestDefaultLayers(t *testing.T) {
	l := DefaultLayers()
	require.NoError(t, l.Validate())
	assert.Equal(t, 480.0, l.Population.Sigma)
	assert.Equal(t, 380.0, l.POI.Sigma)
	assert.Equal(t, 280.0, l.Transit.Sigma)
	assert.NotEmpty(t, l.Transit.Hotspots)
}

func TestLoadLayers(t *testing.T) {
	l, err := LoadLayers(filepath.Join("testdata", "layers.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "population", l.Population.Name)
	assert.Equal(t, DefaultPopulationSigma, l.Population.Sigma)
	require.Len(t, l.Population.Hotspots, 1)
	assert.Equal(t, geomath.GeoPoint{Lat: 50.0, Lng: 8.27}, l.Population.Hotspots[0].Point)
	assert.Equal(t, 300.0, l.POI.Sigma)
	assert.Equal(t, "rail", l.Transit.Name)
	assert.Empty(t, l.Transit.Hotspots)
}

func TestLoadLayers_Errors(t *testing.T) {
	_, err := LoadLayers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("layers:\n  poi:\n    hotspots:\n      - lat: 120\n        lng: 8\n"), 0o644))
	_, err = LoadLayers(bad)
	assert.Error(t, err)
}
