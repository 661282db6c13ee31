package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/router"
)

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route [task]",
		Short: "Show the model and provider chosen for each task type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := router.FromConfig(a.cfg, a.logger)
			if err != nil {
				return err
			}

			tasks := router.TaskTypes()
			if len(args) == 1 {
				t, err := router.ParseTaskType(args[0])
				if err != nil {
					return err
				}
				tasks = []router.TaskType{t}
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tMODEL\tTIER\tPROVIDER")
			for _, t := range tasks {
				provider := "(none)"
				if r, err := rt.Resolve(t); err == nil {
					provider = r.Provider.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t, rt.Model(t), rt.Tier(t), provider)
			}
			return w.Flush()
		},
	}
}
