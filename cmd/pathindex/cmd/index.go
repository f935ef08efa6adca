package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/daemon"
	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/ui"
)

// pollInterval paces progress polling against a daemon.
const pollInterval = 250 * time.Millisecond

// idlePolls is how many empty polls in a row end a daemon-side run. It
// must outlast the scheduler's pause between folders.
const idlePolls = 4

type indexOptions struct {
	ids   []string
	all   bool
	noTUI bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [folder-id...]",
		Short: "Scan folders and rebuild their index",
		Long: `Scan folders and replace their index entries.

With folder ids, those folders are re-indexed. With --all, every attached
folder is. Without either, only folders that are pending, failed or stale
are indexed.

When a daemon is running the scans run inside it and this command follows
their progress; Ctrl+C cancels them.`,
		Example: `  pathindex index 0d6f1c2a
  pathindex index --all --no-tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ids = args
			if opts.all && len(opts.ids) > 0 {
				return fmt.Errorf("--all cannot be combined with folder ids")
			}
			return runIndex(cmd, a, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Index every attached folder")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain progress output")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app, opts indexOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c, ok := a.runningClient(); ok {
		return runRemoteIndex(ctx, cmd, a, c, opts)
	}

	rt, err := a.openLocal()
	if err != nil {
		return err
	}
	defer rt.Close()

	targets, err := indexTargets(ctx, localBackend{svc: rt.svc}, opts)
	if err != nil {
		return err
	}

	events, unsubscribe := rt.svc.Subscribe(256)
	defer unsubscribe()

	renderer := newRenderer(cmd, a, opts, targets)
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = indexLocal(ctx, rt.svc, targets)
	}()

	stats := ui.Follow(ctx, events, renderer, done)
	<-done
	renderer.Complete(stats)
	_ = renderer.Stop()

	a.logger.Info("cli_index_complete",
		slog.Int("folders", stats.Folders),
		slog.Int("files", stats.Files),
		slog.Int("failed", stats.Errors),
		slog.Duration("duration", stats.Duration))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if stats.Errors > 0 {
		return fmt.Errorf("%d folder(s) failed to index", stats.Errors)
	}
	return nil
}

// indexTargets resolves the folders to index. A nil result means the due
// folders chosen by the scheduler.
func indexTargets(ctx context.Context, b backend, opts indexOptions) ([]store.ProjectFolder, error) {
	switch {
	case len(opts.ids) > 0:
		targets := make([]store.ProjectFolder, 0, len(opts.ids))
		for _, ref := range opts.ids {
			f, err := resolveFolder(ctx, b, ref)
			if err != nil {
				return nil, err
			}
			targets = append(targets, *f)
		}
		return targets, nil
	case opts.all:
		folders, err := b.ListFolders(ctx, "")
		if err != nil {
			return nil, err
		}
		if folders == nil {
			folders = []store.ProjectFolder{}
		}
		return folders, nil
	default:
		return nil, nil
	}
}

// indexLocal runs folders one at a time. Per-folder failures are reported
// through broker events; only cancellation stops the loop.
func indexLocal(ctx context.Context, svc *index.Service, targets []store.ProjectFolder) error {
	if targets == nil {
		return svc.StartBackgroundIndexing(ctx)
	}
	for _, f := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = svc.StartIndexing(ctx, f.ID)
	}
	return nil
}

func newRenderer(cmd *cobra.Command, a *app, opts indexOptions, targets []store.ProjectFolder) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(a.noColor),
		ui.WithTitle(commonProject(targets))))
}

// commonProject returns the project shared by every target, or "".
func commonProject(targets []store.ProjectFolder) string {
	if len(targets) == 0 {
		return ""
	}
	p := targets[0].ProjectPath
	for _, f := range targets[1:] {
		if f.ProjectPath != p {
			return ""
		}
	}
	return p
}

// runRemoteIndex starts scans in the daemon and follows them by polling
// its operations. Ctrl+C cancels the operations this command is watching.
func runRemoteIndex(ctx context.Context, cmd *cobra.Command, a *app, c *daemon.Client, opts indexOptions) error {
	targets, err := indexTargets(ctx, c, opts)
	if err != nil {
		return err
	}

	if targets == nil {
		err = c.StartBackground(ctx)
	} else {
		for _, f := range targets {
			if err = c.StartIndexing(ctx, f.ID); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}

	renderer := newRenderer(cmd, a, opts, targets)
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	start := time.Now()

	seen, pollErr := pollOperations(ctx, c, renderer)
	if ctx.Err() != nil {
		// The command context is gone; use a fresh one to reach the daemon.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for opID := range seen {
			_ = c.CancelIndexing(cancelCtx, opID)
		}
		cancel()
	}

	stats := ui.CompletionStats{Duration: time.Since(start)}
	folders, err := c.ListFolders(context.WithoutCancel(ctx), "")
	if err == nil {
		summarizeFolders(folders, seen, renderer, &stats)
	}
	renderer.Complete(stats)
	_ = renderer.Stop()

	if pollErr != nil && ctx.Err() == nil {
		return pollErr
	}
	if stats.Errors > 0 {
		return fmt.Errorf("%d folder(s) failed to index", stats.Errors)
	}
	return nil
}

// pollOperations renders daemon operations until none have been active
// for idlePolls polls. It returns the operation ids it saw, by folder.
func pollOperations(ctx context.Context, c *daemon.Client, r ui.Renderer) (map[string]string, error) {
	seen := make(map[string]string)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	idle := 0
	for idle < idlePolls {
		select {
		case <-ctx.Done():
			return seen, ctx.Err()
		case <-ticker.C:
		}

		ops, err := c.Operations(ctx)
		if err != nil {
			return seen, err
		}
		if len(ops) == 0 {
			idle++
			continue
		}
		idle = 0
		for _, op := range ops {
			seen[op.ID] = op.FolderID
			ev := ui.ProgressEvent{
				FolderID:    op.FolderID,
				Stage:       ui.StageFromPhase(op.Phase),
				Current:     op.Current,
				CurrentFile: op.CurrentFile,
			}
			if op.Total != nil {
				ev.Total = *op.Total
			}
			r.UpdateProgress(ev)
		}
	}
	return seen, nil
}

// summarizeFolders turns the final folder states of the watched operations
// into completion stats.
func summarizeFolders(folders []store.ProjectFolder, seen map[string]string, r ui.Renderer, stats *ui.CompletionStats) {
	watched := make(map[string]bool, len(seen))
	for _, folderID := range seen {
		watched[folderID] = true
	}
	for _, f := range folders {
		if !watched[f.ID] {
			continue
		}
		stats.Folders++
		switch f.Status {
		case store.StatusIndexed:
			stats.Files += f.FileCount
			r.UpdateProgress(ui.ProgressEvent{FolderID: f.ID, Stage: ui.StageComplete, Current: f.FileCount, Total: f.FileCount})
		case store.StatusError:
			stats.Errors++
			r.AddError(ui.ErrorEvent{FolderID: f.ID, Err: errors.New(f.ErrorMessage)})
		default:
			stats.Cancelled++
			r.AddError(ui.ErrorEvent{FolderID: f.ID, Err: errors.New("cancelled"), IsWarn: true})
		}
	}
}
