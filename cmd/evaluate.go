package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/candidate"
	"github.com/sells-group/station-planner/internal/planner"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a candidate location against OSM context and existing stations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}

		f := cmd.Flags()
		at, _ := f.GetString("at")
		radius, _ := f.GetInt("radius")
		format, _ := f.GetString("format")
		save, _ := f.GetBool("save")
		if radius == 0 {
			radius = cfg.Planning.RadiusMeters
		}
		log := zap.L().With(zap.String("command", "evaluate"))

		pt, err := parsePoint(at)
		if err != nil {
			return eris.Wrap(err, "--at")
		}
		if err := candidate.ValidateRadius(radius); err != nil {
			return err
		}

		p, err := loadPlanner(ctx, nil)
		if err != nil {
			return err
		}
		a, err := p.Evaluate(ctx, pt, radius)
		if err != nil {
			return err
		}
		log.Info("location evaluated",
			zap.Float64("score", a.Evaluation.Score),
			zap.String("label", a.Evaluation.Label),
		)

		if save {
			if cfg.Stations.City == "" {
				return eris.New("--city is required with --save")
			}
			if err := cfg.Validate("proposals"); err != nil {
				return err
			}
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			created, err := st.CreateProposal(ctx, candidate.NewProposal(cfg.Stations.City, pt, radius, a.Context, a.Nearby))
			if err != nil {
				return err
			}
			log.Info("proposal saved", zap.String("id", created.ID))
		}

		switch format {
		case "json":
			return writeJSONTo(cmd.OutOrStdout(), "", a)
		case "table":
			return printAssessment(cmd.OutOrStdout(), a)
		default:
			return eris.Errorf("unsupported format %q (want table or json)", format)
		}
	},
}

func printAssessment(out io.Writer, a *planner.Assessment) error {
	e := a.Evaluation
	fmt.Fprintf(out, "Location: %.6f, %.6f (radius %d m)\n", a.Point.Lat, a.Point.Lng, a.RadiusMeters)
	fmt.Fprintf(out, "Score:    %.1f (%s), candidate score %d\n", e.Score, e.Label, e.CandidateScore)
	fmt.Fprintf(out, "Size:     %s\n", e.RecommendedSize)
	fmt.Fprintf(out, "Build:    %s (%.1f) %s\n\n", e.Build.Decision, e.Build.Score, e.Build.Rationale)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tCOUNT")
	fmt.Fprintf(w, "bus stops\t%d\n", a.Context.BusStops)
	fmt.Fprintf(w, "tram stops\t%d\n", a.Context.TramStops)
	fmt.Fprintf(w, "rail stations\t%d\n", a.Context.RailStations)
	fmt.Fprintf(w, "s-bahn stations\t%d\n", a.Context.SBahnStations)
	fmt.Fprintf(w, "u-bahn stations\t%d\n", a.Context.UBahnStations)
	fmt.Fprintf(w, "schools\t%d\n", a.Context.Schools)
	fmt.Fprintf(w, "universities\t%d\n", a.Context.Universities)
	fmt.Fprintf(w, "shops\t%d\n", a.Context.Shops)
	fmt.Fprintf(w, "stations in radius\t%d\n", a.Nearby.StationsInRadius)
	if a.Nearby.NearestDistanceMeters != nil {
		fmt.Fprintf(w, "nearest station (m)\t%.1f\n", *a.Nearby.NearestDistanceMeters)
	}
	return w.Flush()
}

func init() {
	f := evaluateCmd.Flags()
	f.String("at", "", "location as lat,lng (required)")
	f.Int("radius", 0, "evaluation radius in meters (default planning.radius_m)")
	f.String("format", "table", "output format: table or json")
	f.Bool("save", false, "store the result as a proposal for --city")
	_ = evaluateCmd.MarkFlagRequired("at")
	rootCmd.AddCommand(evaluateCmd)
}
