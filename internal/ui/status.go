package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/pathindex/internal/index"
	"github.com/Aman-CERP/pathindex/internal/store"
	"github.com/Aman-CERP/pathindex/internal/telemetry"
)

// StatusInfo is what `pathindex status` reports.
type StatusInfo struct {
	DatabasePath string         `json:"database_path"`
	DatabaseSize int64          `json:"database_size"`
	Daemon       string         `json:"daemon"` // "running" or "stopped"
	DaemonPID    int            `json:"daemon_pid,omitempty"`
	Uptime       string         `json:"uptime,omitempty"`
	Folders      int            `json:"folders"`
	Entries      int            `json:"entries"`
	ByStatus     map[string]int `json:"by_status"`
	Watching     int            `json:"watching"`
	LastIndexed  time.Time      `json:"last_indexed,omitempty"`

	Operations []index.OperationSnapshot `json:"operations"`
	Search     *telemetry.Snapshot       `json:"search,omitempty"`
}

// NewStatusInfo fills the counts of a StatusInfo from store stats.
func NewStatusInfo(stats *store.Stats, folders []store.ProjectFolder) StatusInfo {
	info := StatusInfo{ByStatus: make(map[string]int), Daemon: "stopped"}
	if stats != nil {
		info.Folders = stats.Folders
		info.Entries = stats.Entries
		for s, n := range stats.ByStatus {
			info.ByStatus[string(s)] = n
		}
	}
	for _, f := range folders {
		if f.LastIndexedAt != nil && f.LastIndexedAt.After(info.LastIndexed) {
			info.LastIndexed = *f.LastIndexedAt
		}
	}
	return info
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor || DetectNoColor()),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("pathindex status"))

	_, _ = fmt.Fprintf(r.out, "  Database: %s (%s)\n", info.DatabasePath, FormatBytes(info.DatabaseSize))
	daemon := r.renderState(info.Daemon)
	if info.DaemonPID > 0 {
		daemon += fmt.Sprintf(" (pid %d, up %s)", info.DaemonPID, info.Uptime)
	}
	_, _ = fmt.Fprintf(r.out, "  Daemon:   %s\n\n", daemon)

	_, _ = fmt.Fprintf(r.out, "  Folders:  %d\n", info.Folders)
	statuses := make([]string, 0, len(info.ByStatus))
	for s := range info.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		_, _ = fmt.Fprintf(r.out, "    %-9s %d\n", r.renderState(s), info.ByStatus[s])
	}
	_, _ = fmt.Fprintf(r.out, "  Files:    %d\n", info.Entries)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	if info.Daemon == "running" {
		_, _ = fmt.Fprintf(r.out, "  Watching: %d folder(s)\n", info.Watching)
	}

	if s := info.Search; s != nil && s.TotalQueries > 0 {
		_, _ = fmt.Fprintf(r.out, "  Searches: %d (%.0f%% without results)\n", s.TotalQueries, s.ZeroResultPercentage())
		if n := min(len(s.TopTerms), 5); n > 0 {
			terms := make([]string, n)
			for i, t := range s.TopTerms[:n] {
				terms[i] = t.Term
			}
			_, _ = fmt.Fprintf(r.out, "    top: %s\n", strings.Join(terms, ", "))
		}
	}

	if len(info.Operations) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Running:")
		for _, op := range info.Operations {
			_, _ = fmt.Fprintf(r.out, "    %s  %-8s %5.1f%%  %ds\n",
				shortID(op.FolderID), op.Phase, op.ProgressPct, op.ElapsedSeconds)
		}
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	if info.Operations == nil {
		info.Operations = []index.OperationSnapshot{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "running", string(store.StatusIndexed):
		return r.styles.Success.Render(state)
	case "stopped", string(store.StatusPending), string(store.StatusIndexing):
		return r.styles.Warning.Render(state)
	case string(store.StatusError):
		return r.styles.Error.Render(state)
	default:
		return state
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
