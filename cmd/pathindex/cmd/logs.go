package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/config"
	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/logging"
	"github.com/Aman-CERP/pathindex/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View pathindex logs",
		Long: `Show the last lines of the pathindex log, or follow it like 'tail -f'.

Entries are JSON lines written by every command and the daemon; they are
printed as "time LEVEL message key=value".`,
		Example: `  pathindex logs -n 100
  pathindex logs -f --level warn
  pathindex logs --filter scan_failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, a, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this regex")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file (default ~/.pathindex/logs/server.log)")
	return cmd
}

func runLogs(cmd *cobra.Command, a *app, opts logsOptions) error {
	path := opts.logFile
	if path == "" {
		path = filepath.Join(config.DataDir(), "logs", "server.log")
	}
	if _, err := os.Stat(path); err != nil {
		return pierrors.New(pierrors.ErrCodeInvalidInput, "log file not found: "+path, err).
			WithSuggestion("Logs are written once any pathindex command has run")
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return pierrors.ValidationError("invalid filter pattern", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: a.noColor || ui.DetectNoColor(),
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)\n", path)
	return followLogs(cmd.Context(), cmd, viewer, path)
}

func followLogs(ctx context.Context, cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case e := <-entries:
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(e))
		case err := <-errCh:
			return err
		}
	}
}
