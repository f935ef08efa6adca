package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve path search to AI assistants over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

The server exposes search_paths, list_folders and index_status over the
local index. It does not scan; run 'pathindex serve' alongside it to keep
folders fresh. Logs go to ~/.pathindex/logs only.`,
		Example: `  # .mcp.json
  {"mcpServers": {"pathindex": {"command": "pathindex", "args": ["mcp"]}}}`,
		Annotations: map[string]string{annotationStdio: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.openLocal()
			if err != nil {
				return err
			}
			defer rt.Close()

			srv, err := mcp.NewServer(rt.svc, a.logger)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
}
