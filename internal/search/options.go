package search

import (
	"strings"

	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// SearchOptions narrows a search.
type SearchOptions struct {
	// ProjectPath restricts results to the project's folders. Empty
	// searches every folder.
	ProjectPath string

	// Limit caps the result count. Zero uses the engine's MaxResults;
	// larger values are clamped to it.
	Limit int

	// Extensions keeps only entries with one of these extensions
	// (case-insensitive, leading dot optional).
	Extensions []string
}

// FilterFunc checks if an entry matches filter criteria.
type FilterFunc func(entry store.FileIndexEntry) bool

// buildFilters creates filter functions based on options.
func buildFilters(opts SearchOptions) []FilterFunc {
	var filters []FilterFunc
	if len(opts.Extensions) > 0 {
		filters = append(filters, extensionFilter(opts.Extensions))
	}
	return filters
}

func extensionFilter(exts []string) FilterFunc {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = normalize.Name(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = true
		}
	}
	return func(entry store.FileIndexEntry) bool {
		return allowed[entry.Extension]
	}
}

// applyFilters keeps entries matching every filter.
func applyFilters(entries []store.FileIndexEntry, filters []FilterFunc) []store.FileIndexEntry {
	if len(filters) == 0 {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		keep := true
		for _, f := range filters {
			if !f(e) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, e)
		}
	}
	return out
}
