package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
ask_documents, search_documents and count_documents tools.

Client configuration:
  {
    "mcpServers": {
      "govdocs": {
        "command": "/path/to/govdocs",
        "args": ["mcp", "--config", "/path/to/govdocs.yaml"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) (err error) {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(cmd, a, err) }()

	proc, err := a.processor()
	if err != nil {
		return err
	}
	return mcpserver.New(proc, a.store, version).Run(a.context(cmd.Context()), &mcp.StdioTransport{})
}
