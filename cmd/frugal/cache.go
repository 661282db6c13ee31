package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/cache"
	"github.com/pario-ai/frugal/pkg/engine"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	open := func() (*cache.Cache, error) {
		store, err := engine.OpenStore(a.cfg.Cache)
		if err != nil {
			return nil, err
		}
		return cache.New(store, cache.WithMaxResponses(a.cfg.Cache.MaxResponsesPerSignature), cache.WithLogger(a.logger)), nil
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend:    %s\nSignatures: %d\nVariants:   %d\n",
				a.cfg.Cache.Backend, stats.Signatures, stats.TotalVariants)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			sigs, err := c.Signatures()
			if err != nil {
				return err
			}
			if len(sigs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
				return nil
			}
			for _, s := range sigs {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	var signature string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if signature != "" {
				if err := c.Delete(signature); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cache entry %s cleared.\n", signature)
				return nil
			}
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().StringVar(&signature, "signature", "", "only clear this signature")

	cmd.AddCommand(statsCmd, listCmd, clearCmd)
	return cmd
}
