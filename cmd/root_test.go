package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args from an empty working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeStations(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": 1, "name": "Hauptbahnhof", "lat": 50.0012, "lng": 8.2589, "capacity": 20},
		{"id": 2, "name": "Schillerplatz", "lat": 49.9967, "lng": 8.2695, "capacity": 12},
		{"id": 3, "name": "broken", "lat": 95.0, "lng": 8.2}
	]`), 0o644))
	return path
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "grid", "heatmap", "score", "evaluate", "precompute", "proposals"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "station-planner", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	for _, name := range []string{"stations", "city"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing persistent flag %q", name)
	}
}

func TestProposalsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range proposalsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "create", "set-best", "delete", "rank"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestGridCommand_Flags(t *testing.T) {
	flag := gridCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "geojson", flag.DefValue)
	assert.NotNil(t, gridCmd.Flags().Lookup("gaps-only"))
}

func TestPrecomputeCommand_Flags(t *testing.T) {
	flag := precomputeCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)
	assert.NotNil(t, precomputeCmd.Flags().Lookup("bbox"))
}

func TestEvaluateCommand_RequiresAt(t *testing.T) {
	_, err := execute(t, "evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at")
}

func TestScoreCommand_JSON(t *testing.T) {
	out, err := execute(t, "score",
		"--coverage", "0.2", "--population", "9000", "--utilization", "70",
		"--congestion", "0.4", "--pois", "25", "--transit", "300", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Input struct {
			CoverageRatio float64 `json:"coverage_ratio"`
		} `json:"input"`
		Result struct {
			Score     int              `json:"score"`
			Band      string           `json:"band"`
			Breakdown []map[string]any `json:"breakdown"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.InDelta(t, 0.2, doc.Input.CoverageRatio, 1e-9)
	assert.GreaterOrEqual(t, doc.Result.Score, 0)
	assert.LessOrEqual(t, doc.Result.Score, 100)
	assert.NotEmpty(t, doc.Result.Band)
	assert.Len(t, doc.Result.Breakdown, 6)
}

func TestScoreCommand_Table(t *testing.T) {
	out, err := execute(t, "score", "--coverage", "0", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Score:")
	assert.Contains(t, out, "FACTOR")
}

func TestScoreCommand_BadFormat(t *testing.T) {
	_, err := execute(t, "score", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestGridCommand_GeoJSON(t *testing.T) {
	path := writeStations(t)
	out, err := execute(t, "grid", "--stations", path, "--format", "geojson", "--out", "", "--gaps-only=false")
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.NotEmpty(t, fc.Features)

	covered := 0
	for _, f := range fc.Features {
		if f.Properties["covered"] == true {
			covered++
		}
	}
	assert.Positive(t, covered)
}

func TestGridCommand_ShapefileNeedsOut(t *testing.T) {
	path := writeStations(t)
	_, err := execute(t, "grid", "--stations", path, "--format", "shp", "--out", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out")
}

func TestGridCommand_Shapefile(t *testing.T) {
	path := writeStations(t)
	shpPath := filepath.Join(t.TempDir(), "coverage.shp")
	_, err := execute(t, "grid", "--stations", path, "--format", "shp", "--out", shpPath, "--gaps-only=false")
	require.NoError(t, err)

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_, err := os.Stat(shpPath[:len(shpPath)-4] + ext)
		assert.NoError(t, err, "missing %s", ext)
	}
}

func TestHeatmapCommand(t *testing.T) {
	path := writeStations(t)
	outPath := filepath.Join(t.TempDir(), "heat.json")
	_, err := execute(t, "heatmap", "--stations", path,
		"--bbox", "49.99,8.25,50.01,8.28", "--step", "500",
		"--candidates", "50.0,8.27", "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc heatmapOutput
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.Points)
	assert.Equal(t, doc.Sampling.NX*doc.Sampling.NY, len(doc.Points))
}

func TestProposalsCommand_SQLite(t *testing.T) {
	t.Setenv("PLANNER_STORE_DRIVER", "sqlite")
	t.Setenv("PLANNER_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "planner.db"))

	out, err := execute(t, "proposals", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "null", out)

	_, err = execute(t, "proposals", "set-best", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProposalsCommand_PostgresNeedsURL(t *testing.T) {
	t.Setenv("PLANNER_STORE_DRIVER", "postgres")
	t.Setenv("PLANNER_STORE_DATABASE_URL", "")

	_, err := execute(t, "proposals", "rank")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}
