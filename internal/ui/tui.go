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

// TUIRenderer draws indexing progress with bubbletea on an interactive
// terminal. Keyboard input is left to the shell so Ctrl+C reaches the
// indexing context instead of the program.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexingModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newIndexingModel(cfg.ProjectDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithInput(nil), tea.WithoutSignalHandler()}
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
	r.send(progressUpdateMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// An unresponsive program must not hold the process open.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// Message types for bubbletea
type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

// indexingModel is the bubbletea model for indexing progress.
type indexingModel struct {
	width       int
	stage       Stage
	started     bool
	current     int
	total       int
	detail      string
	annotating  bool
	warnings    int
	errors      int
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	projectDir  string
}

func newIndexingModel(projectDir string) *indexingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &indexingModel{
		width:       80,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		projectDir:  projectDir,
	}
}

// Init implements tea.Model.
func (m *indexingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = msg.Width - 30
		if m.progressBar.Width < 20 {
			m.progressBar.Width = 20
		}

	case progressUpdateMsg:
		if !m.started || msg.Stage != m.stage {
			m.stage = msg.Stage
			m.started = true
		}
		if msg.Stage == StageAnnotating {
			m.annotating = true
		}
		m.current, m.total = msg.Current, msg.Total
		m.detail = msg.Message
		if m.detail == "" {
			m.detail = msg.CurrentFile
		}

	case errorMsg:
		return m, tea.Println(m.renderError(ErrorEvent(msg)))

	case completeMsg:
		m.complete = true
		m.stage = StageComplete
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *indexingModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	var sections []string
	if m.projectDir != "" {
		sections = append(sections, m.styles.Header.Render("codecorpus")+" "+m.styles.Label.Render(m.projectDir))
	}
	sections = append(sections, m.renderStages(), m.renderProgress())
	if status := m.renderStatus(); status != "" {
		sections = append(sections, status)
	}
	return strings.Join(sections, "\n") + "\n"
}

// renderStages renders the pipeline stage indicators.
func (m *indexingModel) renderStages() string {
	stages := []struct {
		stage Stage
		name  string
	}{
		{StageScanning, "Scan"},
		{StageChunking, "Chunk"},
		{StageAnnotating, "Symbols"},
		{StageEmbedding, "Embed"},
		{StageIndexing, "Index"},
		{StageWriting, "Write"},
	}

	var parts []string
	for _, s := range stages {
		if s.stage == StageAnnotating && !m.annotating {
			continue
		}
		var icon string
		var style lipgloss.Style
		switch {
		case m.started && s.stage < m.stage:
			icon, style = "●", m.styles.Success
		case m.started && s.stage == m.stage:
			icon, style = m.spinner.View(), m.styles.Active
		default:
			icon, style = "○", m.styles.Dim
		}
		parts = append(parts, style.Render(icon+" "+s.name))
	}

	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// renderProgress renders the bar for the active stage.
func (m *indexingModel) renderProgress() string {
	if m.total <= 0 {
		line := m.spinner.View() + " " + m.stage.String()
		if m.detail != "" {
			line += " " + m.styles.Dim.Render(truncate(m.detail, 48))
		}
		return line
	}

	percent := float64(m.current) / float64(m.total)
	if percent > 1 {
		percent = 1
	}
	line := m.progressBar.ViewAs(percent) +
		m.styles.Label.Render(fmt.Sprintf(" %d/%d", m.current, m.total))
	if m.detail != "" {
		line += " " + m.styles.Dim.Render(truncate(m.detail, 48))
	}
	return line
}

func (m *indexingModel) renderStatus() string {
	var parts []string
	if m.warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", m.warnings)))
	}
	if m.errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.errors)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

// renderError counts the event and formats it for printing above the view.
func (m *indexingModel) renderError(event ErrorEvent) string {
	style, prefix := m.styles.Error, "error"
	if event.IsWarn {
		style, prefix = m.styles.Warning, "warn"
		m.warnings++
	} else {
		m.errors++
	}
	msg := fmt.Sprint(event.Err)
	if event.File != "" {
		msg = event.File + ": " + msg
	}
	return style.Render(prefix) + " " + msg
}

// renderComplete renders the summary panel left on screen after the run.
func (m *indexingModel) renderComplete() string {
	stats := m.stats

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d files, %d chunks in %s\n",
		m.styles.Header.Render("Indexed"), stats.Files, stats.Chunks, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 || stats.Warnings > 0 {
		fmt.Fprintf(&b, "%s %d skipped, %d warnings\n",
			m.styles.Warning.Render("Notice"), stats.Skipped, stats.Warnings)
	}
	if stats.Embedder.Backend != "" {
		fmt.Fprintf(&b, "%s %s %s (%d dims)\n", m.styles.Label.Render("Model   "),
			stats.Embedder.Backend, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
	if stats.IndexPath != "" {
		fmt.Fprintf(&b, "%s %s\n", m.styles.Label.Render("Index   "), stats.IndexPath)
		fmt.Fprintf(&b, "%s %s", m.styles.Label.Render("Metadata"), stats.MetadataPath)
	}
	return m.styles.Panel.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

// truncate shortens s from the left so the file name stays visible.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return "…" + string(runes[len(runes)-maxLen+1:])
}
