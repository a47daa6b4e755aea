// Package suitability scores a single candidate site against six normalized
// factors and explains the result per factor.
package suitability

import (
	"math"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Band is a quality class derived from the score.
type Band string

// Bands, best first.
const (
	BandExcellent  Band = "excellent"
	BandCaution    Band = "caution"
	BandUnsuitable Band = "unsuitable"
)

// BandThreshold assigns Band to scores at or above MinScore.
type BandThreshold struct {
	Band     Band `json:"band"`
	MinScore int  `json:"min_score"`
}

// DefaultBands returns excellent ≥ 75, caution ≥ 50, unsuitable otherwise.
func DefaultBands() []BandThreshold {
	return []BandThreshold{
		{Band: BandExcellent, MinScore: 75},
		{Band: BandCaution, MinScore: 50},
		{Band: BandUnsuitable, MinScore: math.MinInt},
	}
}

// FactorBreakdown explains one factor's share of the score.
type FactorBreakdown struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Weight       float64 `json:"weight"`
	Raw          float64 `json:"raw"`
	Normalized   float64 `json:"normalized"`
	Contribution float64 `json:"contribution"`
	Formatted    string  `json:"formatted"`
}

// ScoreResult is the outcome of one evaluation.
type ScoreResult struct {
	Score       int               `json:"score"`
	Band        Band              `json:"band"`
	Breakdown   []FactorBreakdown `json:"breakdown"`
	TotalWeight float64           `json:"total_weight"`
}

// Scorer computes suitability scores. It is safe for concurrent use.
type Scorer struct {
	factors []Factor
	bands   []BandThreshold
	printer *message.Printer
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithFactors replaces the factor set.
func WithFactors(factors []Factor) Option {
	return func(s *Scorer) { s.factors = append([]Factor(nil), factors...) }
}

// WithBands replaces the band thresholds. They are evaluated by descending MinScore.
func WithBands(bands []BandThreshold) Option {
	return func(s *Scorer) { s.bands = append([]BandThreshold(nil), bands...) }
}

// WithLanguage sets the locale used for formatted raw values.
func WithLanguage(tag language.Tag) Option {
	return func(s *Scorer) { s.printer = message.NewPrinter(tag) }
}

// NewScorer returns a Scorer with the default factors, bands and English formatting.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		factors: DefaultFactors(),
		bands:   DefaultBands(),
		printer: message.NewPrinter(language.English),
	}
	for _, o := range opts {
		o(s)
	}
	sort.SliceStable(s.bands, func(i, j int) bool { return s.bands[i].MinScore > s.bands[j].MinScore })
	return s
}

var defaultScorer = NewScorer()

// ComputeScore scores in with the default Scorer.
func ComputeScore(in RawMetricInput) ScoreResult {
	return defaultScorer.Score(in)
}

// Score evaluates in. A zero total weight scores 0; NaN inputs count as 0.
func (s *Scorer) Score(in RawMetricInput) ScoreResult {
	res := ScoreResult{Breakdown: make([]FactorBreakdown, 0, len(s.factors))}

	var sum float64
	for _, f := range s.factors {
		raw := f.Value(in)
		if math.IsNaN(raw) {
			raw = 0
		}
		w := f.Weight
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		n := clamp01(f.Normalize(raw))
		fb := FactorBreakdown{
			Key:          f.Key,
			Label:        f.Label,
			Weight:       w,
			Raw:          raw,
			Normalized:   n,
			Contribution: w * n,
		}
		if f.Format != nil {
			fb.Formatted = f.Format(s.printer, raw)
		}
		res.Breakdown = append(res.Breakdown, fb)
		res.TotalWeight += w
		sum += fb.Contribution
	}

	if res.TotalWeight > 0 && !math.IsInf(res.TotalWeight, 0) {
		score := math.Round(100 * sum / res.TotalWeight)
		res.Score = int(math.Max(0, math.Min(100, score)))
	}
	res.Band = s.BandFor(res.Score)
	return res
}

// BandFor returns the first band whose MinScore the score reaches.
func (s *Scorer) BandFor(score int) Band {
	for _, b := range s.bands {
		if score >= b.MinScore {
			return b.Band
		}
	}
	return BandUnsuitable
}
