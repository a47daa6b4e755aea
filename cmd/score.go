package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/station-planner/internal/suitability"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a location from raw metric inputs",
	Long: "Normalizes the six suitability inputs, applies the factor weights and prints the score, band and per-factor breakdown. " +
		"With --at the inputs are derived from the loaded stations and OSM instead of the metric flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f := cmd.Flags()
		in := suitability.RawMetricInput{}
		in.CoverageRatio, _ = f.GetFloat64("coverage")
		in.PopulationDensity, _ = f.GetFloat64("population")
		in.NearbyUtilization, _ = f.GetFloat64("utilization")
		in.CongestionLevel, _ = f.GetFloat64("congestion")
		in.POICount, _ = f.GetFloat64("pois")
		in.TransitProximityMeters, _ = f.GetFloat64("transit")
		format, _ := f.GetString("format")
		at, _ := f.GetString("at")

		var res suitability.ScoreResult
		if at != "" {
			if err := cfg.Validate("evaluate"); err != nil {
				return err
			}
			pt, err := parsePoint(at)
			if err != nil {
				return eris.Wrap(err, "--at")
			}
			p, err := loadPlanner(ctx, nil)
			if err != nil {
				return err
			}
			if in, res, err = p.Suitability(ctx, pt); err != nil {
				return err
			}
		} else {
			res = suitability.NewScorer().Score(in)
		}

		switch format {
		case "json":
			return writeJSONTo(cmd.OutOrStdout(), "", struct {
				Input  suitability.RawMetricInput `json:"input"`
				Result suitability.ScoreResult    `json:"result"`
			}{in, res})
		case "table":
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Score: %d (%s)\n\n", res.Score, res.Band)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FACTOR\tWEIGHT\tRAW\tNORMALIZED\tCONTRIBUTION")
			for _, b := range res.Breakdown {
				fmt.Fprintf(w, "%s\t%.2f\t%s\t%.3f\t%.2f\n", b.Label, b.Weight, b.Formatted, b.Normalized, b.Contribution)
			}
			return w.Flush()
		default:
			return eris.Errorf("unsupported format %q (want table or json)", format)
		}
	},
}

func init() {
	f := scoreCmd.Flags()
	f.Float64("coverage", 0, "existing coverage ratio (0-1)")
	f.Float64("population", 0, "population density per km2")
	f.Float64("utilization", 0, "nearby station utilization (percent)")
	f.Float64("congestion", 0, "traffic congestion level (0-1)")
	f.Float64("pois", 0, "points of interest nearby")
	f.Float64("transit", suitability.TransitDistanceRef, "distance to transit in meters")
	f.String("at", "", "derive inputs for lat,lng from stations and OSM")
	f.String("format", "table", "output format: table or json")
	rootCmd.AddCommand(scoreCmd)
}
