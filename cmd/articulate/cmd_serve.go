package main

import (
	"context"

	"github.com/spf13/cobra"

	"articulate/internal/logging"
	mcpserver "articulate/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server on stdin/stdout exposing the conversion tools
(convert_object, validate_object, repair_mesh) to a connected agent.

The server monitors for parent process death and self-terminates when the
client disconnects, preventing zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv := mcpserver.NewServer()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting articulate MCP server over stdio")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
