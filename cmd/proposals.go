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
	"github.com/sells-group/station-planner/internal/store"
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Manage saved candidate proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openProposalStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		list, err := st.ListProposals(ctx, store.ProposalFilter{City: cfg.Stations.City, Limit: limit})
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONTo(cmd.OutOrStdout(), "", list)
		}
		ranked := make([]candidate.Ranked, len(list))
		for i, p := range list {
			ranked[i] = candidate.Ranked{Proposal: p}
		}
		return printProposals(cmd.OutOrStdout(), ranked, false)
	},
}

var proposalsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Evaluate a location and save it as a proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f := cmd.Flags()
		at, _ := f.GetString("at")
		radius, _ := f.GetInt("radius")
		if radius == 0 {
			radius = cfg.Planning.RadiusMeters
		}
		if cfg.Stations.City == "" {
			return eris.New("--city is required")
		}
		pt, err := parsePoint(at)
		if err != nil {
			return eris.Wrap(err, "--at")
		}

		st, err := openProposalStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := loadPlanner(ctx, st)
		if err != nil {
			return err
		}
		prop, err := p.Propose(ctx, cfg.Stations.City, pt, radius)
		if err != nil {
			return err
		}
		created, err := st.CreateProposal(ctx, prop)
		if err != nil {
			return err
		}

		zap.L().Info("proposal created", zap.String("id", created.ID), zap.Int("score", created.Score))
		return writeJSONTo(cmd.OutOrStdout(), "", created)
	},
}

var proposalsSetBestCmd = &cobra.Command{
	Use:   "set-best <id>",
	Short: "Mark a proposal as the best of its city",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openProposalStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.SetBest(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now the best proposal for %s (score %d)\n", p.ID, p.City, p.Score)
		return nil
	},
}

var proposalsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openProposalStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteProposal(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var proposalsRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank proposals by score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openProposalStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListProposals(ctx, store.ProposalFilter{City: cfg.Stations.City})
		if err != nil {
			return err
		}
		ranked := candidate.Rank(list)

		if markBest, _ := cmd.Flags().GetBool("mark-best"); markBest {
			for _, best := range candidate.Best(list) {
				if best.IsBest {
					continue
				}
				if _, err := st.SetBest(ctx, best.ID); err != nil {
					return err
				}
				zap.L().Info("marked best proposal", zap.String("city", best.City), zap.String("id", best.ID))
			}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONTo(cmd.OutOrStdout(), "", ranked)
		}
		return printProposals(cmd.OutOrStdout(), ranked, true)
	},
}

func openProposalStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("proposals"); err != nil {
		return nil, err
	}
	return initStore(cmd.Context())
}

func printProposals(out io.Writer, list []candidate.Ranked, withRank bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withRank {
		fmt.Fprint(w, "RANK\tGAP\t")
	}
	fmt.Fprintln(w, "ID\tCITY\tLAT\tLNG\tRADIUS\tSCORE\tLABEL\tBEST")
	for _, r := range list {
		if withRank {
			fmt.Fprintf(w, "%d\t%d\t", r.Rank, r.ScoreGap)
		}
		best := ""
		if r.IsBest {
			best = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\t%d\t%d\t%s\t%s\n",
			r.ID, r.City, r.Point.Lat, r.Point.Lng, r.RadiusMeters, r.Score, r.ScoreLabel, best)
	}
	return w.Flush()
}

func init() {
	proposalsListCmd.Flags().Int("limit", 50, "maximum proposals to list")
	proposalsListCmd.Flags().Bool("json", false, "print JSON")

	proposalsCreateCmd.Flags().String("at", "", "location as lat,lng (required)")
	proposalsCreateCmd.Flags().Int("radius", 0, "evaluation radius in meters (default planning.radius_m)")
	_ = proposalsCreateCmd.MarkFlagRequired("at")

	proposalsRankCmd.Flags().Bool("mark-best", false, "mark the top proposal of each city as best")
	proposalsRankCmd.Flags().Bool("json", false, "print JSON")

	proposalsCmd.AddCommand(proposalsListCmd, proposalsCreateCmd, proposalsSetBestCmd, proposalsDeleteCmd, proposalsRankCmd)
	rootCmd.AddCommand(proposalsCmd)
}
