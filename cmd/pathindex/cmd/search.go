package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/daemon"
	"github.com/Aman-CERP/pathindex/internal/output"
	"github.com/Aman-CERP/pathindex/internal/store"
)

type searchOptions struct {
	project    string
	limit      int
	extensions []string
	jsonOutput bool
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Find indexed files by name",
		Long: `Find indexed files whose name contains the query.

Matching ignores case and accents, so "cafe" finds "Café.tsx". Exact
names rank first, then prefixes, then other matches; shorter names win
ties. Without a query every indexed file is listed.`,
		Example: `  pathindex search cafe
  pathindex search logo --ext svg,png -n 5
  pathindex search button --project ~/work/app --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, a, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Only folders of this project")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.max_results)")
	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "Only these extensions, e.g. --ext go,md")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, a *app, query string, opts searchOptions) error {
	b, closeFn, err := a.openBackend()
	if err != nil {
		return err
	}
	defer closeFn()

	a.logger.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	start := time.Now()

	entries, err := b.Search(cmd.Context(), daemon.SearchParams{
		Query:       query,
		ProjectPath: opts.project,
		Limit:       opts.limit,
		Extensions:  opts.extensions,
	})
	if err != nil {
		return err
	}

	a.logger.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(entries)),
		slog.Duration("duration", time.Since(start)))

	if opts.jsonOutput {
		if entries == nil {
			entries = []store.FileIndexEntry{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		out := output.New(cmd.OutOrStdout())
		out.Status("", fmt.Sprintf("No files match %q.", query))
		out.Hint("Check 'pathindex folder list'; folders must be indexed before they are searchable")
		return nil
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), e.FullPath); err != nil {
			return err
		}
	}
	return nil
}
