package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/daemon"
	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/output"
	"github.com/Aman-CERP/pathindex/internal/preflight"
)

func newServeCmd(a *app) *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing daemon in the foreground",
		Long: `Run the daemon that owns the index.

The daemon re-indexes pending, failed and stale folders one at a time,
watches indexed folders for changes and answers CLI requests over a Unix
socket. Only one daemon runs per data directory. Stop it with Ctrl+C or
'pathindex serve --stop'.`,
		Annotations: map[string]string{annotationForeground: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stop {
				return stopDaemon(cmd, a)
			}
			return runServe(cmd, a)
		},
	}

	cmd.Flags().BoolVar(&stop, "stop", false, "Stop the running daemon")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	results, err := a.preflight(cmd, false)
	if err != nil {
		return err
	}
	if preflight.New().HasCriticalFailures(results) {
		return pierrors.New(pierrors.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Run 'pathindex doctor' for details")
	}

	rt, err := a.openLocal()
	if err != nil {
		return err
	}

	d, err := daemon.NewDaemon(a.daemonConfig(), rt.svc, a.logger)
	if err != nil {
		rt.Close()
		return err
	}

	// Run closes the service; the watcher and store are ours.
	runErr := d.Run(cmd.Context())
	_ = rt.watcher.Close()
	_ = rt.store.Close()
	return runErr
}

// stopDaemon signals the daemon and waits for its socket to go away.
func stopDaemon(cmd *cobra.Command, a *app) error {
	if err := daemon.Stop(a.daemonConfig()); err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	c := a.client()
	_, err := pierrors.Retry(cmd.Context(), pierrors.DefaultRetryConfig(), false, func() (struct{}, error) {
		if c.IsRunning() {
			return struct{}{}, pierrors.New(pierrors.ErrCodeDaemonRunning, "daemon is still running", nil)
		}
		return struct{}{}, nil
	})
	if err != nil {
		out.Warning("Stop signal sent; the daemon is still shutting down")
		return nil
	}
	out.Success("Daemon stopped")
	return nil
}
