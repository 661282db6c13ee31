package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/tracker"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		sessions  bool
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded spend per model and per session",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !a.cfg.Ledger.Enabled {
				fmt.Fprintln(out, "Ledger is disabled. Set ledger.enabled in the config to record spend.")
				return nil
			}
			ledger, err := tracker.OpenLedger(a.cfg.Ledger.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			if sessions {
				list, err := ledger.Sessions(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No sessions recorded.")
					return nil
				}
				fmt.Fprintln(w, "SESSION\tSTARTED\tLAST ACTIVITY\tCALLS\tCOST")
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.4f\n",
						s.ID,
						s.StartedAt.Format("2006-01-02 15:04:05"),
						humanize.Time(s.LastActivity),
						s.Interactions, s.TotalCost)
				}
				return w.Flush()
			}

			rows, err := ledger.Summary(ctx, sessionID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No interactions recorded.")
				return nil
			}
			var total float64
			fmt.Fprintln(w, "MODEL\tCALLS\tCACHE HITS\tINPUT\tOUTPUT\tCACHED\tCOST")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t$%.4f\n",
					r.Model, r.Interactions, r.CacheHits,
					humanize.Comma(r.InputTokens), humanize.Comma(r.OutputTokens), humanize.Comma(r.CachedTokens),
					r.Cost)
				total += r.Cost
			}
			fmt.Fprintf(w, "TOTAL\t\t\t\t\t\t$%.4f\n", total)
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&sessions, "sessions", false, "list sessions instead of per-model totals")
	cmd.Flags().StringVar(&sessionID, "session", "", "restrict totals to one session")
	return cmd
}
