package main

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importsplit/pkg/mcp"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
)

func mcpCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Start a Model Context Protocol server over stdin/stdout exposing the
rewrite_imports and diff_imports tools.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, observability.ModeMCP, overrides{})
			if err != nil {
				return err
			}
			defer a.close()

			srv := mcp.NewServer(mcp.ServerDeps{
				Loader:  a.loader,
				Logger:  a.logger,
				Metrics: a.red,
				Tracer:  a.providers.Tracer,
			})

			a.logger.Info("mcp server starting", "tools", srv.ListToolNames())

			return srv.Run(cmd.Context())
		},
	}
}
