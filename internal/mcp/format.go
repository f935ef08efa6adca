package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/search"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// FormatSearchResults formats path results as markdown.
func FormatSearchResults(query string, results []PathResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No files found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Files matching \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d file", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. `%s` (%s, %s)\n", i+1, r.FullPath, r.MatchReason, humanSize(r.Size))
	}
	return sb.String()
}

// FormatFolders formats attached folders as a markdown table.
func FormatFolders(folders []FolderOutput) string {
	if len(folders) == 0 {
		return "No folders attached."
	}

	var sb strings.Builder
	sb.WriteString("| ID | Project | Folder | Status | Files |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, f := range folders {
		status := f.Status
		if f.ErrorMessage != "" {
			status += ": " + f.ErrorMessage
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %d |\n", f.ID, f.ProjectPath, f.FolderPath, status, f.FileCount)
	}
	return sb.String()
}

// ToPathResult converts an index entry for output. needle is the
// normalized query used to explain the match.
func ToPathResult(e store.FileIndexEntry, needle string) PathResult {
	return PathResult{
		FileName:     e.FileName,
		FullPath:     e.FullPath,
		RelativePath: e.RelativePath,
		FolderID:     e.ProjectFolderID,
		Extension:    e.Extension,
		Size:         e.Size,
		ModifiedAt:   e.ModifiedAt,
		MIMEType:     MimeTypeForPath(e.FileName),
		MatchReason:  matchReason(e, needle),
	}
}

// ToFolderOutput converts a registry row for output.
func ToFolderOutput(f store.ProjectFolder) FolderOutput {
	return FolderOutput{
		ID:            f.ID,
		ProjectPath:   f.ProjectPath,
		FolderPath:    f.FolderPath,
		Status:        string(f.Status),
		FileCount:     f.FileCount,
		LastIndexedAt: f.LastIndexedAt,
		ErrorMessage:  f.ErrorMessage,
	}
}

func matchReason(e store.FileIndexEntry, needle string) string {
	if needle == "" {
		return "listed"
	}
	switch search.Tier(e, needle) {
	case search.TierExact:
		return "exact"
	case search.TierPrefix:
		return "prefix"
	default:
		return "contains"
	}
}

// needleFor normalizes a query the way the index does.
func needleFor(query string) string {
	return normalize.Name(strings.TrimSpace(query))
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
