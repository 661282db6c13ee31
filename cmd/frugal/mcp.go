package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve frugal's reporting tools over stdio as an MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// MCP tools only report, so no provider is required.
			e, err := a.openEngine(true)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			a.logger.Info("mcp server starting", "version", version)
			return mcp.New(e, a.logger, version).Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
