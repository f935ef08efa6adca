package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/preflight"
)

func newDoctorCmd(a *app) *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and attached folders",
		Long: `Run the checks the daemon runs before it starts.

Checks:
  - Disk space next to the database (100MB minimum)
  - Write permissions in the database directory
  - Open file limit (1024 minimum)
  - inotify watch budget for the attached folders (Linux)
  - Every attached folder exists and is readable`,
		Example: `  pathindex doctor
  pathindex doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := a.preflight(cmd, verbose)
			if err != nil {
				return err
			}
			checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// preflight runs every system check against the configured database and
// the attached folders.
func (a *app) preflight(cmd *cobra.Command, verbose bool) ([]preflight.CheckResult, error) {
	b, closeFn, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	folders, err := b.ListFolders(cmd.Context(), "")
	closeFn()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(folders))
	seen := make(map[string]bool, len(folders))
	for _, f := range folders {
		if !seen[f.FolderPath] {
			seen[f.FolderPath] = true
			paths = append(paths, f.FolderPath)
		}
	}

	checker := preflight.New(preflight.WithVerbose(verbose))
	results := checker.RunAll(cmd.Context(), filepath.Dir(a.cfg.Store.Path), paths)
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			a.logger.Warn("preflight_check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	return results, nil
}
