package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.collectStatus(cmd)
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), a.noColor)
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// collectStatus asks a running daemon for live counts and falls back to
// reading the store.
func (a *app) collectStatus(cmd *cobra.Command) (ui.StatusInfo, error) {
	ctx := cmd.Context()

	var info ui.StatusInfo
	if c, ok := a.runningClient(); ok {
		st, err := c.Status(ctx)
		if err != nil {
			return info, err
		}
		folders, err := c.ListFolders(ctx, "")
		if err != nil {
			return info, err
		}
		info = ui.NewStatusInfo(st.Stats, folders)
		info.Daemon = "running"
		info.DaemonPID = st.PID
		info.Uptime = st.Uptime
		info.Watching = st.Watching
		info.Operations = st.Operations
		info.Search = st.Search
	} else {
		rt, err := a.openLocal()
		if err != nil {
			return info, err
		}
		defer rt.Close()

		stats, err := rt.store.Stats(ctx)
		if err != nil {
			return info, err
		}
		folders, err := rt.svc.Folders(ctx, "")
		if err != nil {
			return info, err
		}
		info = ui.NewStatusInfo(stats, folders)
	}

	info.DatabasePath = a.cfg.Store.Path
	if fi, err := os.Stat(a.cfg.Store.Path); err == nil {
		info.DatabaseSize = fi.Size()
	}
	return info, nil
}
