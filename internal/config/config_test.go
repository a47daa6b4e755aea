package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.Pool.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 128, cfg.Server.CacheSize)
	assert.Equal(t, 25, cfg.Overpass.QueryTimeoutSecs)
	assert.Equal(t, 4, cfg.Overpass.Concurrency)
	assert.InDelta(t, 250, cfg.Grid.CellRadiusMeters, 1e-9)
	assert.Equal(t, 50000, cfg.Grid.MaxCells)
	assert.InDelta(t, 1.0, cfg.Potential.Weights.Population, 1e-9)
	assert.InDelta(t, 0.75, cfg.Potential.Weights.Coverage, 1e-9)
	assert.Equal(t, 500, cfg.Planning.RadiusMeters)
	assert.Equal(t, 250, cfg.Planning.StepMeters)
	assert.Equal(t, "file", cfg.Stations.Source)
	assert.Equal(t, "stations.json", cfg.Stations.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: planner.db
log:
  level: debug
  format: console
server:
  port: 9090
grid:
  cell_radius_m: 180
potential:
  weights:
    poi: 1.2
stations:
  source: http
  url: https://example.test/stations.json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "planner.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 180, cfg.Grid.CellRadiusMeters, 1e-9)
	assert.InDelta(t, 1.2, cfg.Potential.Weights.POI, 1e-9)
	assert.Equal(t, "http", cfg.Stations.Source)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.9, cfg.Potential.Weights.Transit, 1e-9)
	assert.Equal(t, 45, cfg.Overpass.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLANNER_STORE_DRIVER", "postgres")
	t.Setenv("PLANNER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PLANNER_SERVER_PORT", "3000")
	t.Setenv("PLANNER_GRID_CELL_RADIUS_M", "120")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 120, cfg.Grid.CellRadiusMeters, 1e-9)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PLANNER_STORE_DATABASE_URL=postgres://dotenv/db\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("PLANNER_STORE_DATABASE_URL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.Store.DatabaseURL)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Grid.CellRadiusMeters = 250
	cfg.Potential.Weights.Population = 1
	cfg.Planning.RadiusMeters = 500
	cfg.Planning.StepMeters = 250
	cfg.Overpass.Concurrency = 4
	cfg.Stations.Source = "file"
	cfg.Stations.Path = "stations.json"
	cfg.Store.Driver = "postgres"
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateStationSources(t *testing.T) {
	cfg := validDefaults()
	cfg.Stations.Source = "http"
	err := cfg.Validate("grid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stations.url is required")

	cfg.Stations.URL = "https://example.test/stations"
	assert.NoError(t, cfg.Validate("grid"))

	cfg.Stations.Source = "postgres"
	err = cfg.Validate("grid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Stations.Source = "ftp"
	err = cfg.Validate("grid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stations.source")
}

func TestValidateProposals(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("proposals")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "planner.db"
	assert.NoError(t, cfg.Validate("proposals"))

	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate("proposals"))
}

func TestValidatePrecompute(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("precompute"))

	cfg.Planning.RadiusMeters = 10
	cfg.Planning.StepMeters = 0
	err := cfg.Validate("precompute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planning.step_m")
	assert.Contains(t, err.Error(), "planning.radius_m")
}

func TestValidateSharedChecks(t *testing.T) {
	cfg := validDefaults()
	cfg.Grid.CellRadiusMeters = 0
	cfg.Potential.Weights.POI = -1

	err := cfg.Validate("evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.cell_radius_m")
	assert.Contains(t, err.Error(), "weight poi")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validation mode")
}
