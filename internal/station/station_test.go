package station

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/station-planner/internal/coverage"
	"github.com/sells-group/station-planner/internal/geomath"
)

func ptr[T any](v T) *T { return &v }

func TestRecord_Validate(t *testing.T) {
	ok := Record{ID: 1, Lat: ptr(50.0), Lng: ptr(8.27)}
	assert.NoError(t, ok.Validate())

	missing := Record{ID: 2, Lat: ptr(50.0)}
	assert.True(t, eris.Is(missing.Validate(), geomath.ErrInvalidCoordinate))

	outOfRange := Record{ID: 3, Lat: ptr(95.0), Lng: ptr(8.0)}
	assert.True(t, eris.Is(outOfRange.Validate(), geomath.ErrInvalidCoordinate))

	negative := Record{ID: 4, Lat: ptr(50.0), Lng: ptr(8.0), Capacity: ptr(-1)}
	assert.ErrorContains(t, negative.Validate(), "negative capacity")
}

func TestToExisting(t *testing.T) {
	records := []Record{
		{ID: 7, Name: ptr("Hauptbahnhof"), Lat: ptr(50.0), Lng: ptr(8.25), Capacity: ptr(20)},
		{ID: 8, Lat: ptr(50.01), Lng: ptr(8.26)},
	}

	got := ToExisting(records)
	require.Len(t, got, 2)
	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, "Hauptbahnhof", got[0].Name)
	assert.True(t, got[0].HasCapacity)
	assert.InDelta(t, coverage.MaxRadiusMeters, got[0].CoverageRadiusMeters(), 1e-9)
	assert.False(t, got[1].HasCapacity)
	assert.InDelta(t, coverage.BaseRadiusMeters, got[1].CoverageRadiusMeters(), 1e-9)
}

func TestDecode(t *testing.T) {
	in := `[
		{"id": 1, "name": "A", "lat": 50.0, "lng": 8.27, "capacity": 10},
		{"id": 2, "lat": 50.1},
		{"id": 3, "lat": "north", "lng": 8.2},
		{"id": 4, "lat": 49.99, "lng": 8.24}
	]`
	records, errs := Decode(strings.NewReader(in))
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(4), records[1].ID)
	assert.Nil(t, records[1].Name)
	assert.Len(t, errs, 2)
}

func TestDecode_EmptyAndMalformed(t *testing.T) {
	records, errs := Decode(strings.NewReader(""))
	assert.Empty(t, records)
	assert.Empty(t, errs)

	records, errs = Decode(strings.NewReader(`[]`))
	assert.NotNil(t, records)
	assert.Empty(t, errs)

	records, errs = Decode(strings.NewReader(`{"id": 1}`))
	assert.Nil(t, records)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "expected '['")

	records, errs = Decode(strings.NewReader(`[{"id": 1, "lat": 50, "lng": 8}, {"id": `))
	assert.Nil(t, records)
	assert.NotEmpty(t, errs)

	records, errs = Decode(strings.NewReader(`[{"id": 1, "lat": 50, "lng": 8}`))
	assert.Nil(t, records)
	assert.NotEmpty(t, errs)
}

func TestDecodeCSV(t *testing.T) {
	in := "id,name,lat,lon,capacity,city\n" +
		"1,Dom,49.999,8.274,12,Mainz\n" +
		"2,,50.001,8.260,,Mainz\n" +
		"x,Bad,50,8,,Mainz\n" +
		"4,Far,91,8,,Mainz\n"

	records, errs := DecodeCSV(strings.NewReader(in))
	require.Len(t, records, 2)
	assert.Equal(t, "Dom", *records[0].Name)
	assert.Equal(t, 12, *records[0].Capacity)
	assert.Equal(t, "Mainz", records[0].City)
	assert.Nil(t, records[1].Name)
	assert.Nil(t, records[1].Capacity)
	assert.Len(t, errs, 2)
}

func TestDecodeCSV_MissingColumns(t *testing.T) {
	_, errs := DecodeCSV(strings.NewReader("id,name,lat\n1,a,50\n"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no lng column")
}

func writeStationsXLSX(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("stations")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.xlsx")
	writeStationsXLSX(t, path, [][]string{
		{"ID", "Name", "Lat", "Lng", "Capacity"},
		{"10", "Rheinufer", "50.002", "8.279", "8"},
		{"11", "Nowhere", "", "8.2", ""},
	})

	records, errs := ReadXLSX(path)
	require.Len(t, records, 1)
	assert.Equal(t, int64(10), records[0].ID)
	assert.Len(t, errs, 1)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "stations.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[
		{"id": 1, "lat": 50.0, "lng": 8.27, "city": "Mainz"},
		{"id": 2, "lat": 50.08, "lng": 8.24, "city": "Wiesbaden"},
		{"id": 3, "lat": 50.01, "lng": 8.26},
		{"id": 4}
	]`), 0o600))

	all, err := FileSource{Path: jsonPath}.Stations(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mainz, err := FileSource{Path: jsonPath, City: "mainz"}.Stations(context.Background())
	require.NoError(t, err)
	assert.Len(t, mainz, 2)

	_, err = FileSource{Path: jsonPath, Strict: true}.Stations(context.Background())
	assert.ErrorContains(t, err, "1 invalid records")

	csvPath := filepath.Join(dir, "stations.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("lat,lng\n50,8.27\n"), 0o600))
	fromCSV, err := FileSource{Path: csvPath}.Stations(context.Background())
	require.NoError(t, err)
	assert.Len(t, fromCSV, 1)

	_, err = FileSource{Path: filepath.Join(dir, "stations.geojson")}.Stations(context.Background())
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = FileSource{Path: filepath.Join(dir, "missing.json")}.Stations(context.Background())
	assert.Error(t, err)
}
