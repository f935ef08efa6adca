// Package cmd provides the CLI commands for pathindex.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/config"
	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/logging"
	"github.com/Aman-CERP/pathindex/internal/profiling"
	"github.com/Aman-CERP/pathindex/pkg/version"
)

// Command annotations that change how logging is set up.
const (
	// annotationStdio marks commands whose stdio carries a protocol, so
	// logs must go to the file only.
	annotationStdio = "pathindex/stdio"
	// annotationForeground marks long-running commands that also log to
	// stderr.
	annotationForeground = "pathindex/foreground"
)

// app carries what subcommands share: flags, effective config and logger.
type app struct {
	configPath string
	debug      bool
	noColor    bool
	profile    profiling.Options

	cfg      *config.Config
	profiler *profiling.Session
	logger   *slog.Logger
	cleanup  func()
}

// NewRootCmd creates the root command for the pathindex CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "pathindex",
		Short: "Fast fuzzy path search over external folders",
		Long: `pathindex indexes the file names of folders attached to a project so an
editor can complete paths instantly, ignoring case and accents.

Attach a folder, index it, then search:
  pathindex folder add . ~/Design/Assets
  pathindex index --all
  pathindex search cafe

Run 'pathindex serve' to keep folders fresh with live change watching.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	cmd.SetVersionTemplate("pathindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/pathindex/config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to stderr and ~/.pathindex/logs/")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newFolderCmd(a))
	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newCancelCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMCPCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command. A failure is printed to stderr, with
// details and cause under --debug.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		debug, _ := root.PersistentFlags().GetBool("debug")
		_, _ = fmt.Fprintln(root.ErrOrStderr(), pierrors.FormatForUser(err, debug))
	}
	return err
}

// setup loads the effective config and installs the file logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.FilePath = filepath.Join(config.DataDir(), "logs", "server.log")
	logCfg.Level = cfg.Logging.Level
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	if a.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}
	if cmd.Annotations[annotationForeground] == "true" {
		logCfg.WriteToStderr = true
	}
	if cmd.Annotations[annotationStdio] == "true" {
		logCfg = logging.FileOnly(logCfg)
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = logger.With(slog.String("command", cmd.Name()))
	a.cleanup = cleanup
	slog.SetDefault(a.logger)

	if a.profile.Enabled() {
		if a.profiler, err = profiling.Start(a.profile); err != nil {
			return err
		}
	}
	return nil
}

// teardown writes requested profiles and closes the log file.
func (a *app) teardown() error {
	var err error
	if a.profiler != nil {
		err = a.profiler.Stop()
		a.profiler = nil
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return err
}
