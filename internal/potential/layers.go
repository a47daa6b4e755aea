package potential

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/station-planner/internal/geomath"
)

// Default gaussian falloff per layer, in meters.
const (
	DefaultPopulationSigma = 480.0
	DefaultPOISigma        = 380.0
	DefaultTransitSigma    = 280.0
)

// Hotspot is a weighted point of influence.
type Hotspot struct {
	Name   string           `yaml:"name" json:"name"`
	Point  geomath.GeoPoint `yaml:",inline" json:"point"`
	Weight float64          `yaml:"weight" json:"weight"`
}

// Layer is a named set of hotspots sharing one falloff.
type Layer struct {
	Name     string    `yaml:"name" json:"name"`
	Sigma    float64   `yaml:"sigma" json:"sigma"`
	Hotspots []Hotspot `yaml:"hotspots" json:"hotspots"`
}

// Layers are the three static layers of the surface.
type Layers struct {
	Population Layer `yaml:"population" json:"population"`
	POI        Layer `yaml:"poi" json:"poi"`
	Transit    Layer `yaml:"transit" json:"transit"`
}

func hs(name string, lat, lng, weight float64) Hotspot {
	return Hotspot{Name: name, Point: geomath.GeoPoint{Lat: lat, Lng: lng}, Weight: weight}
}

// DefaultLayers returns illustrative hotspots for Mainz.
func DefaultLayers() Layers {
	return Layers{
		Population: Layer{
			Name:  "population",
			Sigma: DefaultPopulationSigma,
			Hotspots: []Hotspot{
				hs("Neustadt", 50.0050, 8.2580, 1.0),
				hs("Altstadt", 49.9990, 8.2740, 0.9),
				hs("Oberstadt", 49.9880, 8.2650, 0.7),
				hs("Gonsenheim", 50.0070, 8.2180, 0.6),
				hs("Bretzenheim", 49.9800, 8.2380, 0.6),
				hs("Hechtsheim", 49.9690, 8.2780, 0.5),
				hs("Weisenau", 49.9860, 8.2960, 0.5),
				hs("Kastel", 50.0090, 8.2850, 0.5),
			},
		},
		POI: Layer{
			Name:  "poi",
			Sigma: DefaultPOISigma,
			Hotspots: []Hotspot{
				hs("Dom", 49.9990, 8.2740, 1.0),
				hs("Universität", 49.9935, 8.2420, 0.9),
				hs("Römerpassage", 50.0020, 8.2670, 0.8),
				hs("Rheinufer", 50.0030, 8.2780, 0.6),
				hs("Unimedizin", 49.9920, 8.2580, 0.6),
				hs("Hochschule", 49.9870, 8.2300, 0.4),
			},
		},
		Transit: Layer{
			Name:  "transit",
			Sigma: DefaultTransitSigma,
			Hotspots: []Hotspot{
				hs("Hauptbahnhof", 49.9986, 8.2585, 1.0),
				hs("Römisches Theater", 49.9930, 8.2780, 0.6),
				hs("Mainz Nord", 50.0140, 8.2460, 0.4),
				hs("Gonsenheim Bf", 50.0130, 8.2120, 0.4),
				hs("Hauptfriedhof", 49.9950, 8.2540, 0.3),
				hs("Kastel Bf", 50.0060, 8.2830, 0.5),
			},
		},
	}
}

// All returns the layers in population, POI, transit order.
func (l Layers) All() [3]Layer {
	return [3]Layer{l.Population, l.POI, l.Transit}
}

// Validate checks sigmas, weights and hotspot coordinates.
func (l Layers) Validate() error {
	for _, layer := range l.All() {
		if !(layer.Sigma > 0) {
			return eris.Errorf("potential: layer %q sigma must be positive", layer.Name)
		}
		for _, h := range layer.Hotspots {
			if err := h.Point.Validate(); err != nil {
				return eris.Wrapf(err, "potential: layer %q hotspot %q", layer.Name, h.Name)
			}
			if h.Weight < 0 {
				return eris.Errorf("potential: layer %q hotspot %q has negative weight", layer.Name, h.Name)
			}
		}
	}
	return nil
}

// LoadLayers reads hotspot layers from a YAML file with a top-level "layers"
// key. Missing sigmas and names fall back to the defaults.
func LoadLayers(path string) (Layers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layers{}, eris.Wrapf(err, "potential: read layers %s", path)
	}

	var wrapper struct {
		Layers Layers `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Layers{}, eris.Wrap(err, "potential: parse layers")
	}

	l := wrapper.Layers
	def := DefaultLayers()
	fill := func(dst *Layer, src Layer) {
		if dst.Sigma == 0 {
			dst.Sigma = src.Sigma
		}
		if dst.Name == "" {
			dst.Name = src.Name
		}
	}
	fill(&l.Population, def.Population)
	fill(&l.POI, def.POI)
	fill(&l.Transit, def.Transit)

	if err := l.Validate(); err != nil {
		return Layers{}, err
	}
	return l, nil
}
