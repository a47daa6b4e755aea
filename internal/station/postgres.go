package station

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/db"
	"github.com/sells-group/station-planner/internal/geomath"
)

// ErrCityNotFound is returned when no city matches the requested name.
var ErrCityNotFound = eris.New("station: city not found")

// PostgresSource reads active stations from the stations and cities tables.
type PostgresSource struct {
	Pool db.Pool
	// City limits Stations to one city; empty loads every station.
	City string
}

const stationsQuery = `SELECT s.id, s.name, s.lat, s.lng, s.capacity, COALESCE(c.name, '')
	FROM stations s
	LEFT JOIN cities c ON s.city_id = c.id
	WHERE s.active IS NOT FALSE AND ($1 = '' OR lower(c.name) = lower($1))
	ORDER BY s.id`

// Stations implements Source. Rows without usable coordinates are skipped.
func (s PostgresSource) Stations(ctx context.Context) ([]Record, error) {
	return s.ListByCity(ctx, s.City)
}

// ListByCity loads the active stations of city.
func (s PostgresSource) ListByCity(ctx context.Context, city string) ([]Record, error) {
	rows, err := s.Pool.Query(ctx, stationsQuery, city)
	if err != nil {
		return nil, eris.Wrap(err, "station: query stations")
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Lat, &r.Lng, &r.Capacity, &r.City); err != nil {
			return nil, eris.Wrap(err, "station: scan station")
		}
		if r.Validate() != nil {
			continue
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "station: iterate stations")
}

// CityByName loads the stored center and bounds of a city.
func (s PostgresSource) CityByName(ctx context.Context, name string) (*CityInfo, error) {
	var (
		info                       CityInfo
		lat, lng                   *float64
		swLat, swLng, neLat, neLng *float64
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, lat, lng, bounds_sw_lat, bounds_sw_lng, bounds_ne_lat, bounds_ne_lng
		FROM cities WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, name,
	).Scan(&info.ID, &info.Name, &lat, &lng, &swLat, &swLng, &neLat, &neLng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrCityNotFound, "city %q", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "station: get city %q", name)
	}

	if lat != nil && lng != nil {
		info.Center = &geomath.GeoPoint{Lat: *lat, Lng: *lng}
	}
	if swLat != nil && swLng != nil && neLat != nil && neLng != nil {
		info.Bounds = &geomath.BBox{MinLat: *swLat, MinLng: *swLng, MaxLat: *neLat, MaxLng: *neLng}
	}
	return &info, nil
}
