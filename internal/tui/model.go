// Package tui implements the interactive question loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"perspective/internal/domain"
	"perspective/internal/usecase"
)

// Answerer is the TUI-facing subset of the perspective engine.
type Answerer interface {
	Answer(ctx context.Context, req usecase.AnswerRequest) (*domain.Perspective, error)
}

// IsQuit reports whether input ends the session.
func IsQuit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

type answerMsg struct {
	perspective *domain.Perspective
	err         error
}

// Model is the Bubble Tea model for interactive mode.
type Model struct {
	ctx      context.Context
	engine   Answerer
	topK     int
	persona  string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	summary  string
	status   string
	waiting  bool
	ready    bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, engine Answerer, topK int, persona, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question (quit to exit)"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		engine:   engine,
		topK:     topK,
		persona:  persona,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Type a question and press Enter.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved - rh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-4)
		m.viewport.Height = vh
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.viewport.SetContent(usecase.FormatPerspective(msg.perspective))
		m.viewport.GotoTop()
		if msg.perspective.Degraded() {
			m.status = "Synthesis failed, showing sources only."
		} else {
			m.status = fmt.Sprintf("%d sources. Ask another question.", len(msg.perspective.Sources))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.waiting {
		return m, nil
	}
	if IsQuit(q) {
		return m, tea.Quit
	}

	m.input.SetValue("")
	m.waiting = true
	m.status = fmt.Sprintf("Thinking about %q...", q)

	ctx, engine, req := m.ctx, m.engine, usecase.AnswerRequest{Query: q, TopK: m.topK, Persona: m.persona}
	ask := func() tea.Msg {
		p, err := engine.Answer(ctx, req)
		return answerMsg{perspective: p, err: err}
	}
	return m, tea.Batch(ask, m.spinner.Tick)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Perspective")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())

	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)

	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
