package candidate

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var gridHeader = []string{"ix", "iy", "lat", "lng", "score"}

// WriteJSON writes the grid in its meta + points form.
func (g *Grid) WriteJSON(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(g); err != nil {
		return eris.Wrap(err, "candidate: encode grid json")
	}
	return nil
}

// WriteCSV writes one row per grid point with a header.
func (g *Grid) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(gridHeader); err != nil {
		return eris.Wrap(err, "candidate: write csv header")
	}
	for _, p := range g.Points {
		rec := []string{
			strconv.Itoa(p.IX),
			strconv.Itoa(p.IY),
			strconv.FormatFloat(p.Lat, 'f', 6, 64),
			strconv.FormatFloat(p.Lng, 'f', 6, 64),
			strconv.Itoa(p.Score),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "candidate: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "candidate: flush csv")
}

// WriteXLSX writes a "points" sheet and a "meta" sheet.
func (g *Grid) WriteXLSX(w io.Writer) error {
	f := xlsx.NewFile()

	points, err := f.AddSheet("points")
	if err != nil {
		return eris.Wrap(err, "candidate: add points sheet")
	}
	header := points.AddRow()
	for _, h := range gridHeader {
		header.AddCell().SetString(h)
	}
	for _, p := range g.Points {
		row := points.AddRow()
		row.AddCell().SetInt(p.IX)
		row.AddCell().SetInt(p.IY)
		row.AddCell().SetFloat(p.Lat)
		row.AddCell().SetFloat(p.Lng)
		row.AddCell().SetInt(p.Score)
	}

	meta, err := f.AddSheet("meta")
	if err != nil {
		return eris.Wrap(err, "candidate: add meta sheet")
	}
	for _, kv := range [][2]string{
		{"city_name", g.Meta.CityName},
		{"step_m", strconv.Itoa(g.Meta.StepMeters)},
		{"radius_m", strconv.Itoa(g.Meta.RadiusMeters)},
		{"nx", strconv.Itoa(g.Meta.NX)},
		{"ny", strconv.Itoa(g.Meta.NY)},
		{"points_total", strconv.Itoa(g.Meta.PointsTotal)},
		{"generated_at", g.Meta.GeneratedAt.Format(time.RFC3339)},
	} {
		row := meta.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "candidate: write xlsx")
	}
	return nil
}
