package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xvierd/focus-cli/internal/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server for integration with AI assistants.
The server provides tools for reading the focus state, choosing rules and
starting or stopping sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.config.MCP.Enabled {
			return fmt.Errorf("the MCP server is disabled; set mcp.enabled = true in %s", app.configPath)
		}

		// stdout carries the protocol
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, "🚀 Starting MCP server...")
		fmt.Fprintln(errOut, "   The server will communicate via stdio")
		fmt.Fprintln(errOut, "   Press Ctrl+C to stop")

		ctx := setupSignalHandler()
		_ = recoverSession(ctx)

		server := mcp.NewServer(app.state)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}
