package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexingModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIndexingModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(refreshMsg{})
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(refreshMsg{})
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	cancel := r.cancel
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	// Give the completion view a chance to render before quitting.
	select {
	case <-r.done:
	case <-time.After(200 * time.Millisecond):
		program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

// indexingModel is the bubbletea model for scan progress.
type indexingModel struct {
	tracker     *ProgressTracker
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	title       string
}

func newIndexingModel(tracker *ProgressTracker, title string) *indexingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	p := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return &indexingModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
		title:       title,
	}
}

// Init implements tea.Model.
func (m *indexingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width/3, 20)

	case refreshMsg:
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *indexingModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	stats := m.tracker.Stats()

	title := "pathindex"
	if m.title != "" {
		title = "pathindex • " + m.title
	}

	var lines []string
	lines = append(lines, m.styles.Header.Render(title))
	lines = append(lines, m.styles.Border.Render(strings.Repeat("─", width)))
	if len(stats.Folders) == 0 {
		lines = append(lines, m.spinner.View()+" "+m.styles.Label.Render("Waiting for scans..."))
	}
	for _, f := range stats.Folders {
		lines = append(lines, m.renderFolder(f, width)...)
	}
	lines = append(lines, m.styles.Border.Render(strings.Repeat("─", width)))
	lines = append(lines, m.renderStatusBar(stats))
	return strings.Join(lines, "\n") + "\n"
}

// renderFolder renders the stage line and, for active folders, the bar or
// current file.
func (m *indexingModel) renderFolder(f FolderStats, width int) []string {
	var icon string
	var style lipgloss.Style
	switch {
	case f.Failed:
		icon, style = "✗", m.styles.Error
	case f.Stage == StageComplete:
		icon, style = "●", m.styles.Success
	default:
		icon, style = m.spinner.View(), m.styles.Active
	}

	head := style.Render(fmt.Sprintf("%s %s  %s", icon, shortID(f.FolderID), f.Stage))
	if f.Stage == StageComplete {
		return []string{head}
	}

	var detail string
	switch {
	case f.Total > 0:
		detail = fmt.Sprintf("%s %s %s",
			m.progressBar.ViewAs(f.Progress),
			m.styles.Active.Render(fmt.Sprintf("%3.0f%%", f.Progress*100)),
			m.styles.Label.Render(fmt.Sprintf("%d / %d files", f.Current, f.Total)))
		if f.ETA > 0 {
			detail += m.styles.Label.Render("  ETA " + formatDuration(f.ETA))
		}
	case f.Current > 0:
		detail = m.styles.Label.Render(fmt.Sprintf("%d files found", f.Current))
	default:
		detail = m.styles.Dim.Render("Preparing...")
	}

	lines := []string{head, "  " + detail}
	if f.CurrentFile != "" {
		lines = append(lines, "  "+m.styles.Dim.Render(truncateFilePath(f.CurrentFile, width-2)))
	}
	return lines
}

func (m *indexingModel) renderStatusBar(stats ProgressStats) string {
	parts := []string{m.styles.Label.Render(fmt.Sprintf("%d active, %d done", stats.Active, stats.Done))}
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d cancelled", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *indexingModel) renderComplete() string {
	var lines []string
	header := "✓ Indexing complete"
	if m.stats.Errors > 0 {
		header = "✗ Indexing finished with errors"
	}
	lines = append(lines, m.styles.Header.Render(header), "")
	lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Label.Render("Folders: "), m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Folders))))
	lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Label.Render("Files:   "), m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Files))))
	if m.stats.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("%s  %d", m.styles.Label.Render("Skipped: "), m.stats.Skipped))
	}
	lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(m.stats.Duration))))

	if m.stats.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", m.stats.Errors)))
	}
	if m.stats.Cancelled > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d cancelled", m.stats.Cancelled)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentDim)).
		Padding(0, 2)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncateFilePath keeps the file name and as much of its directory as
// fits in maxLen.
func truncateFilePath(path string, maxLen int) string {
	if path == "" || len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}

	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "..." + path[len(path)-maxLen+3:]
	}
	name := path[i+1:]
	if len(name)+4 > maxLen {
		return "..." + name[len(name)-maxLen+3:]
	}

	remaining := maxLen - len(name) - 4
	dir := path[:i]
	if remaining <= 0 {
		return ".../" + name
	}
	return "..." + dir[len(dir)-remaining:] + "/" + name
}

var _ Renderer = (*TUIRenderer)(nil)
