package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "station-planner",
	Short: "Micromobility station siting engine",
	Long:  "Analyses station coverage on a hex grid, scores candidate sites and serves the planning API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyStationFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("stations", "", "station file (.json, .csv or .xlsx); overrides stations.source")
	pf.String("city", "", "city name used to filter stations and label output")
}

// applyStationFlags lets --stations and --city override the configured
// station source.
func applyStationFlags(cmd *cobra.Command, c *config.Config) {
	if path, _ := cmd.Flags().GetString("stations"); path != "" {
		c.Stations.Source = "file"
		c.Stations.Path = path
	}
	if city, _ := cmd.Flags().GetString("city"); city != "" {
		c.Stations.City = city
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
