package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/ranking"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// Message types for bubbletea
type resultMsg struct {
	input string
	res   launcher.Result
}

type selectedMsg struct {
	sel launcher.Selection
	err error
}

type settingsMsg struct {
	status string
	err    error
}

// launcherModel is the bubbletea model for the interactive launcher.
// Every edit of the query line submits a turn; the engine supersedes the
// previous one, so only the latest delivered result is shown.
type launcherModel struct {
	ctx     context.Context
	engine  Launcher
	input   textinput.Model
	spinner spinner.Model
	styles  Styles
	limit   int

	result  launcher.Result
	shown   bool
	pending int
	cursor  int
	latency *Sparkline
	status  string
	failed  bool

	width    int
	quitting bool
	chosen   *launcher.Selection
}

func newLauncherModel(ctx context.Context, engine Launcher, cfg Config) *launcherModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "Search apps, links, files, or type an alias"
	ti.CharLimit = 256
	ti.SetValue(cfg.InitialQuery)
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}

	styles := GetStyles(cfg.NoColor)
	ti.PromptStyle = styles.Prompt

	return &launcherModel{
		ctx:     ctx,
		engine:  engine,
		input:   ti,
		spinner: s,
		styles:  styles,
		limit:   limit,
		latency: NewSparkline(20),
		width:   80,
	}
}

// Init implements tea.Model. The initial (possibly blank) query is
// submitted right away so defaults show before the first keystroke.
func (m *launcherModel) Init() tea.Cmd {
	m.pending++
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.submitCmd(m.input.Value()))
}

func (m *launcherModel) submitCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{input: text, res: m.engine.Submit(m.ctx, text)}
	}
}

func (m *launcherModel) selectCmd(id string) tea.Cmd {
	return func() tea.Msg {
		sel, err := m.engine.Select(m.ctx, id)
		return selectedMsg{sel: sel, err: err}
	}
}

// moveSourceCmd moves the source of the highlighted row one step.
func (m *launcherModel) moveSourceCmd(id string, dir ranking.Direction) tea.Cmd {
	return func() tea.Msg {
		moved, err := m.engine.ReorderSource(id, dir)
		switch {
		case err != nil:
			return settingsMsg{err: err}
		case !moved:
			return settingsMsg{status: fmt.Sprintf("%s cannot move %s", id, dir)}
		}
		return settingsMsg{status: fmt.Sprintf("Moved %s %s", id, dir)}
	}
}

func (m *launcherModel) toggleFrequencyCmd() tea.Cmd {
	return func() tea.Msg {
		on := !m.engine.Settings().UseFrequency
		if err := m.engine.SetFrequencyRanking(on); err != nil {
			return settingsMsg{err: err}
		}
		if on {
			return settingsMsg{status: "Frequency ranking on"}
		}
		return settingsMsg{status: "Frequency ranking off"}
	}
}

// Update implements tea.Model.
func (m *launcherModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case resultMsg:
		m.pending = max(0, m.pending-1)
		if msg.res.Outcome.Delivered() && msg.input == m.input.Value() {
			m.result = msg.res
			m.shown = true
			m.cursor = 0
			m.latency.Add(float64(msg.res.Duration.Milliseconds()))
		}
		return m, nil

	case selectedMsg:
		if msg.err != nil {
			m.status, m.failed = msg.err.Error(), true
			return m, nil
		}
		if msg.sel.KeepVisible {
			m.status, m.failed = describe(msg.sel.Candidate), false
			return m, nil
		}
		sel := msg.sel
		m.chosen = &sel
		m.quitting = true
		return m, tea.Quit

	case settingsMsg:
		if msg.err != nil {
			m.status, m.failed = msg.err.Error(), true
			return m, nil
		}
		// Re-run the query so the new order shows.
		m.status, m.failed = msg.status, false
		m.pending++
		return m, tea.Batch(m.spinner.Tick, m.submitCmd(m.input.Value()))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *launcherModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "ctrl+p", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n", "tab":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		rows := m.visible()
		if len(rows) == 0 {
			return m, nil
		}
		return m, m.selectCmd(rows[m.cursor].ID)
	case "ctrl+k", "ctrl+j":
		rows := m.visible()
		if len(rows) == 0 {
			return m, nil
		}
		dir := ranking.Up
		if msg.String() == "ctrl+j" {
			dir = ranking.Down
		}
		return m, m.moveSourceCmd(rows[m.cursor].SourceID, dir)
	case "ctrl+f":
		return m, m.toggleFrequencyCmd()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	after := m.input.Value()
	if after == before {
		return m, cmd
	}
	m.status = ""
	m.pending++
	return m, tea.Batch(cmd, m.spinner.Tick, m.submitCmd(after))
}

func (m *launcherModel) visible() []source.Candidate {
	c := m.result.Candidates
	if len(c) > m.limit {
		c = c[:m.limit]
	}
	return c
}

// View implements tea.Model.
func (m *launcherModel) View() string {
	if m.quitting {
		return ""
	}

	width := max(m.width-2, 40)
	var sb strings.Builder

	header := m.styles.Header.Render("amanlaunch")
	if m.pending > 0 {
		header += " " + m.spinner.View()
	}
	sb.WriteString(header + "\n")
	sb.WriteString(m.input.View() + "\n")
	sb.WriteString(m.styles.Dim.Render(strings.Repeat("─", width)) + "\n")

	rows := m.visible()
	switch {
	case !m.shown:
	case len(rows) == 0:
		sb.WriteString(m.styles.Subtitle.Render("  No results") + "\n")
	default:
		for i, c := range rows {
			sb.WriteString(m.renderRow(c, i == m.cursor, width) + "\n")
		}
	}
	if m.result.Shortcut != nil && len(rows) > 0 {
		sb.WriteString(m.styles.Dim.Render("  shortcut "+m.result.Shortcut.Entry.Key) + "\n")
	}

	sb.WriteString(m.styles.Dim.Render(strings.Repeat("─", width)) + "\n")
	if m.status != "" {
		style := m.styles.Success
		if m.failed {
			style = m.styles.Error
		}
		sb.WriteString(style.Render(m.status) + "\n")
	}
	footer := "↑/↓ move  enter select  ctrl+k/j reorder  ctrl+f frequency  esc quit"
	if m.latency.Len() > 1 {
		footer += "  " + m.styles.Bar.Render(m.latency.Render())
	}
	sb.WriteString(m.styles.Dim.Render(footer))
	return sb.String()
}

func (m *launcherModel) renderRow(c source.Candidate, selected bool, width int) string {
	marker := "  "
	titleStyle := m.styles.Title
	if selected {
		marker = m.styles.Selected.Render("▸ ")
		titleStyle = m.styles.Selected
	}

	tag := m.styles.Source.Render(c.SourceID)
	budget := max(width-lipgloss.Width(tag)-4, 10)
	title := truncate(c.Title, budget)
	line := marker + Highlight(title, c.TitleMatchPositions, titleStyle, m.styles.Match)

	if c.Subtitle != "" {
		rest := budget - lipgloss.Width(title) - 3
		if rest > 5 {
			line += m.styles.Subtitle.Render("  " + truncate(c.Subtitle, rest))
		}
	}
	pad := width - lipgloss.Width(line) - lipgloss.Width(tag)
	if pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line + tag
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func describe(c source.Candidate) string {
	label := c.Action.Label
	if label == "" {
		label = string(c.Action.Kind)
	}
	return fmt.Sprintf("%s: %s", label, c.Title)
}

// Run opens the interactive launcher and blocks until the user selects a
// candidate or quits. It returns the selection that closed the launcher,
// or nil when the user quit.
func Run(ctx context.Context, engine Launcher, cfg Config) (*launcher.Selection, error) {
	m := newLauncherModel(ctx, engine, cfg)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("launcher ui: %w", err)
	}
	if fm, ok := final.(*launcherModel); ok {
		return fm.chosen, nil
	}
	return m.chosen, nil
}
