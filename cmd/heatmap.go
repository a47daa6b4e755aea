package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/geomath"
	"github.com/sells-group/station-planner/internal/planner"
	"github.com/sells-group/station-planner/internal/potential"
)

// heatmapOutput is the JSON document written by the heatmap command.
type heatmapOutput struct {
	BBox     geomath.BBox          `json:"bbox"`
	Sampling potential.Sampling    `json:"sampling"`
	Weights  potential.Weights     `json:"weights"`
	Points   []potential.HeatPoint `json:"points"`
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Compute the demand potential surface",
	Long:  "Samples a bounding box and evaluates the potential model against candidate and existing stations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("grid"); err != nil {
			return err
		}

		f := cmd.Flags()
		bboxFlag, _ := f.GetString("bbox")
		step, _ := f.GetFloat64("step")
		candFlag, _ := f.GetString("candidates")
		existing, _ := f.GetBool("include-existing")
		out, _ := f.GetString("out")
		log := zap.L().With(zap.String("command", "heatmap"))

		candidates, err := parsePoints(candFlag)
		if err != nil {
			return eris.Wrap(err, "--candidates")
		}

		p, err := loadPlanner(ctx, nil)
		if err != nil {
			return err
		}

		var box geomath.BBox
		if bboxFlag != "" {
			if box, err = parseBBox(bboxFlag); err != nil {
				return eris.Wrap(err, "--bbox")
			}
		} else {
			b, ok := geomath.BoundsOf(p.Snapshot().Points())
			if !ok {
				return eris.New("--bbox is required when no stations are loaded")
			}
			box = b.Expand(step)
		}

		req := planner.HeatmapRequest{
			Bounds:          box,
			StepMeters:      step,
			Candidates:      candidates,
			Weights:         cfg.Potential.Weights,
			IncludeExisting: existing,
		}
		points, sampling, err := p.Heatmap(req)
		if err != nil {
			return err
		}
		log.Info("heatmap computed",
			zap.Int("samples", len(points)),
			zap.Int("nx", sampling.NX),
			zap.Int("ny", sampling.NY),
		)

		return writeJSONTo(cmd.OutOrStdout(), out, heatmapOutput{
			BBox:     box,
			Sampling: sampling,
			Weights:  req.Weights,
			Points:   points,
		})
	},
}

func init() {
	f := heatmapCmd.Flags()
	f.String("bbox", "", "min_lat,min_lng,max_lat,max_lng (default: station bounds)")
	f.Float64("step", 200, "sample spacing in meters")
	f.String("candidates", "", "candidate sites as lat,lng;lat,lng")
	f.Bool("include-existing", true, "treat loaded stations as candidates")
	f.String("out", "", "output file (stdout when empty)")
	rootCmd.AddCommand(heatmapCmd)
}
