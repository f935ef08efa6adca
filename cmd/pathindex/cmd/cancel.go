package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/output"
)

func newCancelCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cancel [operation-id...]",
		Short: "Cancel scans running in the daemon",
		Long: `Cancel indexing operations running in the daemon.

Without arguments the running operations are listed. A cancelled folder
keeps its previous entries and is picked up again by the scheduler.`,
		Example: `  pathindex cancel
  pathindex cancel 5b1e9c7f-0d2a-4c55-9a77-3e1f0a6b2c11
  pathindex cancel --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := a.runningClient()
			if !ok {
				return pierrors.New(pierrors.ErrCodeDaemonNotRunning, "daemon is not running", nil).
					WithSuggestion("Scans only run in the background under 'pathindex serve'")
			}
			out := output.New(cmd.OutOrStdout())
			ctx := cmd.Context()

			if all {
				if err := c.CancelAll(ctx); err != nil {
					return err
				}
				out.Success("Cancelled all running operations")
				return nil
			}

			if len(args) == 0 {
				ops, err := c.Operations(ctx)
				if err != nil {
					return err
				}
				if len(ops) == 0 {
					out.Status("", "No operations running.")
					return nil
				}
				rows := make([][]string, 0, len(ops))
				for _, op := range ops {
					rows = append(rows, []string{
						op.ID, shortID(op.FolderID), string(op.Phase),
						fmt.Sprintf("%.1f%%", op.ProgressPct), fmt.Sprintf("%ds", op.ElapsedSeconds),
					})
				}
				out.Table([]string{"OPERATION", "FOLDER", "PHASE", "PROGRESS", "ELAPSED"}, rows)
				return nil
			}

			for _, id := range args {
				if err := c.CancelIndexing(ctx, id); err != nil {
					return err
				}
				out.Successf("Cancelled %s", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Cancel every running operation")
	return cmd
}
