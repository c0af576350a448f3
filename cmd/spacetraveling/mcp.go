package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the posts to an MCP client over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; everything else goes to stderr.
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		app := spacetraveling.New(appConfig.site(), spacetraveling.WithLogger(logger))
		app.Echo.Logger.SetOutput(os.Stderr)
		if err := app.Open(); err != nil {
			return err
		}
		defer app.Close()

		logger.Info("serving MCP over stdio", zap.String("endpoint", appConfig.APIEndpoint))
		return mcp.ServeStdio(app.MCPServer())
	},
}
