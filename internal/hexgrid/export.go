package hexgrid

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference of exported geometries (WGS84).
const SRID = 4326

// Geometry returns the cell as a closed lng/lat polygon.
func (c Cell) Geometry() *geom.Polygon {
	flat := make([]float64, 0, (len(c.Polygon)+1)*2)
	for _, v := range c.Polygon {
		flat = append(flat, v.Lng, v.Lat)
	}
	flat = append(flat, c.Polygon[0].Lng, c.Polygon[0].Lat)

	poly := geom.NewPolygon(geom.XY).SetSRID(SRID)
	// A six-vertex XY ring always matches the polygon layout.
	_ = poly.Push(geom.NewLinearRingFlat(geom.XY, flat))
	return poly
}

// EncodeEWKB encodes the cell polygon as little-endian EWKB with SRID 4326.
func EncodeEWKB(c Cell) ([]byte, error) {
	data, err := ewkb.Marshal(c.Geometry(), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "hexgrid: encode cell %s", c.ID)
	}
	return data, nil
}

// FeatureCollection converts cells to GeoJSON. props, when non-nil, supplies
// extra properties for the i-th cell; id, row and col are always set.
func FeatureCollection(cells []Cell, props func(i int) map[string]any) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(cells))}
	for i, c := range cells {
		p := map[string]any{}
		if props != nil {
			for k, v := range props(i) {
				p[k] = v
			}
		}
		p["id"] = c.ID
		p["row"] = c.Row
		p["col"] = c.Col
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         c.ID,
			Geometry:   c.Geometry(),
			Properties: p,
		})
	}
	return fc
}

// WriteShapefile writes cells as a polygon shapefile at path (.shp/.shx/.dbf).
// covered may be nil; otherwise it must be parallel to cells.
func WriteShapefile(path string, cells []Cell, covered []bool) error {
	if covered != nil && len(covered) != len(cells) {
		return eris.Errorf("hexgrid: covered has %d entries for %d cells", len(covered), len(cells))
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrap(err, "hexgrid: create shapefile")
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("CELL_ID", 48),
		shp.NumberField("ROW", 8),
		shp.NumberField("COL", 8),
		shp.NumberField("COVERED", 1),
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "hexgrid: set shapefile fields")
	}

	for i, c := range cells {
		ring := make([]shp.Point, 0, len(c.Polygon)+1)
		for _, v := range c.Polygon {
			ring = append(ring, shp.Point{X: v.Lng, Y: v.Lat})
		}
		ring = append(ring, ring[0])
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))

		n := int(w.Write(&poly))
		cov := 0
		if covered != nil && covered[i] {
			cov = 1
		}
		for field, value := range []any{c.ID, c.Row, c.Col, cov} {
			if err := w.WriteAttribute(n, field, value); err != nil {
				return eris.Wrapf(err, "hexgrid: write attributes for %s", c.ID)
			}
		}
	}
	return nil
}
