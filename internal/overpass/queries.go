package overpass

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/geomath"
)

// Feature classes beyond the ones the planning grid uses.
const (
	KindTramStops candidate.POIKind = "tram_stops"
	KindSBahn     candidate.POIKind = "sbahn_stations"
	KindUBahn     candidate.POIKind = "ubahn_stations"
	KindHospitals candidate.POIKind = "hospitals"
	KindEmployers candidate.POIKind = "employers"
	KindParks     candidate.POIKind = "parks"
	KindMalls     candidate.POIKind = "malls_supermarkets"
	KindTourism   candidate.POIKind = "tourism"
)

// POIKinds make up the POI breakdown of a context.
var POIKinds = []candidate.POIKind{KindHospitals, KindEmployers, KindParks, KindMalls, KindTourism}

// ContextKinds are counted for every location context.
var ContextKinds = []candidate.POIKind{
	candidate.KindBusStops, KindTramStops, candidate.KindRailStations, KindSBahn, KindUBahn,
	candidate.KindSchools, candidate.KindUniversities, candidate.KindShops,
}

var selectors = map[candidate.POIKind][]string{
	candidate.KindBusStops: {
		`node["highway"="bus_stop"]`,
		`node["public_transport"~"platform|stop_position"]["bus"="yes"]`,
		`node["amenity"="bus_station"]`,
	},
	KindTramStops: {
		`node["railway"="tram_stop"]`,
		`node["public_transport"~"platform|stop_position"]["tram"="yes"]`,
	},
	candidate.KindRailStations: {
		`node["railway"="station"]`,
		`node["railway"="halt"]`,
	},
	KindSBahn: {
		`node["railway"~"station|halt"]["network"~"S-Bahn",i]`,
		`node["railway"~"station|halt"]["operator"~"S-Bahn",i]`,
		`node["railway"~"station|halt"]["name"~"S-Bahn",i]`,
	},
	KindUBahn: {
		`node["station"="subway"]`,
		`node["railway"="subway_entrance"]`,
		`node["subway"="yes"]`,
	},
	candidate.KindSchools: {
		`node["amenity"="school"]`,
		`node["building"="school"]`,
	},
	candidate.KindUniversities: {
		`node["amenity"="university"]`,
		`node["amenity"="college"]`,
		`node["building"="university"]`,
	},
	candidate.KindShops: {
		`node["shop"]`,
	},
	KindHospitals: {
		`node["amenity"="hospital"]`,
		`node["amenity"="clinic"]`,
		`node["amenity"="doctors"]`,
	},
	KindEmployers: {
		`node["office"]`,
		`node["industrial"]`,
		`node["landuse"="industrial"]`,
		`node["landuse"="commercial"]`,
	},
	KindParks: {
		`node["leisure"="park"]`,
		`node["leisure"="sports_centre"]`,
		`node["leisure"="stadium"]`,
	},
	KindMalls: {
		`node["shop"="supermarket"]`,
		`node["shop"="mall"]`,
		`node["amenity"="marketplace"]`,
	},
	KindTourism: {
		`node["tourism"]`,
		`node["historic"]`,
		`node["amenity"="theatre"]`,
		`node["amenity"="cinema"]`,
	},
}

// Around is the Overpass filter for a circle.
func Around(p geomath.GeoPoint, radiusMeters int) string {
	return fmt.Sprintf("(around:%d,%.6f,%.6f)", radiusMeters, p.Lat, p.Lng)
}

// InBBox is the Overpass filter for a south,west,north,east box.
func InBBox(b geomath.BBox) string {
	return fmt.Sprintf("(%.6f,%.6f,%.6f,%.6f)", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}

// BuildQuery unions every selector of kind restricted by filter.
func BuildQuery(kind candidate.POIKind, filter string, timeoutSeconds int) (string, error) {
	sel, ok := selectors[kind]
	if !ok {
		return "", eris.Errorf("overpass: unknown kind %q", kind)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSeconds)
	for _, s := range sel {
		fmt.Fprintf(&b, "  %s%s;\n", s, filter)
	}
	b.WriteString(");\nout;\n")
	return b.String(), nil
}
