package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/pricing"
	"github.com/pario-ai/frugal/pkg/tracker"
)

func newCostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate costs and show model pricing",
	}

	var (
		turns     int
		agents    int
		model     string
		hitRate   float64
		sessionID string
	)
	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the cost of a session before running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			est := pricing.NewEstimator(pricing.FromConfig(a.cfg.Pricing), a.cfg.Router.DefaultModel)
			est.SetCacheHitRate(hitRate)

			if sessionID != "" {
				if !a.cfg.Ledger.Enabled {
					return errors.New("replaying a session requires ledger.enabled")
				}
				ledger, err := tracker.OpenLedger(a.cfg.Ledger.DBPath)
				if err != nil {
					return err
				}
				defer func() { _ = ledger.Close() }()
				records, err := ledger.Records(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("no interactions recorded for session %s", sessionID)
				}
				fmt.Fprintln(out, pricing.Format(est.EstimateReplay(records, model)))
				return nil
			}

			if turns <= 0 {
				return errors.New("--turns must be positive")
			}
			fmt.Fprintln(out, pricing.Format(est.EstimateSession(turns, agents, model)))
			return nil
		},
	}
	estimateCmd.Flags().IntVar(&turns, "turns", 10, "number of turns")
	estimateCmd.Flags().IntVar(&agents, "agents", 1, "number of agents that may respond per turn")
	estimateCmd.Flags().StringVarP(&model, "model", "m", "", "model to price against (default: router default)")
	estimateCmd.Flags().Float64Var(&hitRate, "cache-hit-rate", 0, "expected cache hit rate (0-1)")
	estimateCmd.Flags().StringVar(&sessionID, "session", "", "replay a recorded session instead of estimating turns")

	pricingCmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show the model price table (USD per 1M tokens)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			table := pricing.FromConfig(a.cfg.Pricing)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tINPUT\tOUTPUT")
			for _, p := range table.Models() {
				fmt.Fprintf(w, "%s\t$%.2f\t$%.2f\n", p.Model, p.Input, p.Output)
			}
			d := table.Default()
			fmt.Fprintf(w, "(default)\t$%.2f\t$%.2f\n", d.Input, d.Output)
			return w.Flush()
		},
	}

	cmd.AddCommand(estimateCmd, pricingCmd)
	return cmd
}
