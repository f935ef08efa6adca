// Package search answers fuzzy, diacritics-insensitive path queries
// against the index store.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// DefaultMaxResults is the result cap when none is configured.
const DefaultMaxResults = 50

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineConfig configures the search engine.
type EngineConfig struct {
	// MaxResults caps every result list. Default: 50
	MaxResults int
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine matches normalized queries against indexed file names.
type Engine struct {
	registry store.FolderRegistry
	entries  store.IndexStore
	config   EngineConfig
	logger   *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(registry store.FolderRegistry, entries store.IndexStore, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if registry == nil || entries == nil {
		return nil, ErrNilDependency
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	e := &Engine{
		registry: registry,
		entries:  entries,
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search returns entries whose normalized name contains the normalized
// query, best matches first. A non-empty projectPath limits the search to
// that project's folders. The empty query browses.
func (e *Engine) Search(ctx context.Context, query, projectPath string) ([]store.FileIndexEntry, error) {
	return e.SearchWithOptions(ctx, query, SearchOptions{ProjectPath: projectPath})
}

// List browses the index without a query.
func (e *Engine) List(ctx context.Context, projectPath string) ([]store.FileIndexEntry, error) {
	return e.Search(ctx, "", projectPath)
}

// SearchWithOptions is Search with filters and a custom limit.
func (e *Engine) SearchWithOptions(ctx context.Context, query string, opts SearchOptions) ([]store.FileIndexEntry, error) {
	start := time.Now()
	needle := normalize.Name(strings.TrimSpace(query))

	limit := e.config.MaxResults
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}
	filters := buildFilters(opts)

	var (
		results []store.FileIndexEntry
		err     error
	)
	if opts.ProjectPath != "" {
		results, err = e.searchProject(ctx, needle, opts.ProjectPath, limit, len(filters) > 0)
	} else {
		results, err = e.searchGlobal(ctx, needle, opts.Extensions, limit)
	}
	if err != nil {
		return nil, err
	}

	results = applyFilters(results, filters)
	Sort(results, needle)
	if len(results) > limit {
		results = results[:limit]
	}

	e.logger.Debug("search_complete",
		slog.String("query", query),
		slog.String("project", opts.ProjectPath),
		slog.Int("results", len(results)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return results, nil
}

// searchProject runs one lookup per folder of the project concurrently and
// concatenates the results in registry order.
func (e *Engine) searchProject(ctx context.Context, needle, projectPath string, limit int, filtered bool) ([]store.FileIndexEntry, error) {
	folders, err := e.registry.ListByProject(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, nil
	}

	// A post-query filter can discard rows, so each folder returns all
	// of its matches.
	perFolder := limit
	if filtered {
		perFolder = 0
	}

	parts := make([][]store.FileIndexEntry, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range folders {
		g.Go(func() error {
			found, err := e.entries.MatchEntries(gctx, f.ID, needle, perFolder)
			if err != nil {
				return err
			}
			parts[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []store.FileIndexEntry
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// searchGlobal searches every folder. With an extension filter it reads
// the per-extension sets and matches in memory.
func (e *Engine) searchGlobal(ctx context.Context, needle string, exts []string, limit int) ([]store.FileIndexEntry, error) {
	if len(exts) == 0 {
		return e.entries.MatchEntries(ctx, "", needle, limit)
	}

	seen := make(map[string]bool)
	var out []store.FileIndexEntry
	for _, ext := range exts {
		ext = normalize.Name(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true

		entries, err := e.entries.EntriesByExtension(ctx, ext)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if Matches(entry, needle) {
				out = append(out, entry)
			}
		}
	}
	return out, nil
}
