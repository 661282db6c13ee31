package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/pricing"
	"github.com/pario-ai/frugal/pkg/tracker"
)

func newBudgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show budget limits and recorded spend",
	}

	var sessionID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show budget limits, and spend vs limits for a recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			b := a.cfg.Budget
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LIMIT\tVALUE")
			fmt.Fprintf(w, "cost per session\t%s\n", limitDollars(b.CostLimitPerSession))
			fmt.Fprintf(w, "cost per interaction\t%s\n", limitDollars(b.CostLimitPerInteraction))
			fmt.Fprintf(w, "max input tokens\t%s\n", limitTokens(b.MaxInputTokens))
			fmt.Fprintf(w, "max output tokens\t%s\n", limitTokens(b.MaxOutputTokens))
			fmt.Fprintf(w, "max total tokens\t%s\n", limitTokens(b.MaxTotalTokens))
			fmt.Fprintf(w, "warning threshold\t%.0f%%\n", b.WarningThreshold*100)
			if err := w.Flush(); err != nil {
				return err
			}

			if sessionID == "" {
				return nil
			}
			if !a.cfg.Ledger.Enabled {
				fmt.Fprintln(out, "\nLedger is disabled; no recorded spend to compare.")
				return nil
			}
			ledger, err := tracker.OpenLedger(a.cfg.Ledger.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			sessions, err := ledger.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sessions {
				if s.ID != sessionID {
					continue
				}
				est := pricing.NewEstimator(pricing.FromConfig(a.cfg.Pricing), a.cfg.Router.DefaultModel)
				o := est.RemainingBudget(b.CostLimitPerSession, s.TotalCost)
				fmt.Fprintf(out, "\nSession %s\n", s.ID)
				fmt.Fprintf(out, "  Spent:        $%.4f over %d interactions\n", s.TotalCost, s.Interactions)
				if b.CostLimitPerSession > 0 {
					fmt.Fprintf(out, "  Remaining:    $%.4f (%.1f%% used)\n", o.Remaining, o.PercentUsed)
					fmt.Fprintf(out, "  Est. left:    ~%s interactions\n", humanize.Comma(int64(o.RemainingInteractions)))
				}
				switch {
				case o.Critical:
					fmt.Fprintln(out, "  CRITICAL: session budget nearly exhausted")
				case o.Warning:
					fmt.Fprintln(out, "  WARNING: session budget past warning threshold")
				}
				return nil
			}
			return fmt.Errorf("session %s not found in ledger", sessionID)
		},
	}
	statusCmd.Flags().StringVar(&sessionID, "session", "", "compare a recorded session's spend against the limits")

	cmd.AddCommand(statusCmd)
	return cmd
}

func limitDollars(v float64) string {
	if v <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("$%.2f", v)
}

func limitTokens(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.Comma(int64(n))
}
