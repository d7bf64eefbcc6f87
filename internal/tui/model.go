// Package tui is a terminal chat client for a running kotae server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/kotae/internal/models"
)

// ChatPort is the subset of the server API the chat needs.
type ChatPort interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
	ResetSession(ctx context.Context, sessionID string) error
}

type entry struct {
	role string // "you", "kotae", or "error"
	text string
}

type answerMsg struct {
	resp *models.AskResponse
	err  error
}

type resetMsg struct{ err error }

// Model is the Bubble Tea model for the chat.
type Model struct {
	port     ChatPort
	session  string
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat bound to sessionID. Typing /reset forgets the session.
func New(port ChatPort, sessionID string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the documentation and press Enter"
	ti.Focus()
	ti.CharLimit = models.DefaultMaxQuestionChars
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		port:     port,
		session:  sessionID,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   fmt.Sprintf("Session %s. /reset clears it, Ctrl+C quits.", sessionID),
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window size, and answers from the server.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := logBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input line, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: "error", text: msg.err.Error()})
			m.status = "Request failed."
		} else {
			m.entries = append(m.entries, entry{role: "kotae", text: msg.resp.Answer})
			m.status = fmt.Sprintf("Answered in %dms from %d chunk(s).", msg.resp.QueryTime, len(msg.resp.Chunks))
		}
		m.refresh()
		return m, nil
	case resetMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Reset failed: " + msg.err.Error()
		} else {
			m.entries = nil
			m.status = "Session cleared."
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			if q == "/reset" {
				m.status = "Clearing session..."
				return m, m.reset()
			}
			m.entries = append(m.entries, entry{role: "you", text: q})
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	port, session, timeout := m.port, m.session, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := port.Ask(ctx, models.AskRequest{Question: q, SessionID: session})
		return answerMsg{resp: resp, err: err}
	}
}

func (m Model) reset() tea.Cmd {
	port, session, timeout := m.port, m.session, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return resetMsg{err: port.ResetSession(ctx, session)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

// View renders the chat log, input, and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("kotae")
	status := statusStyle.Render(m.status)
	return header + "\n" + logBoxStyle.Render(m.viewport.View()) + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderLog() string {
	if len(m.entries) == 0 {
		return "No questions yet."
	}
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(roleStyles[e.role].Render(e.role + ":"))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
	}
	return b.String()
}

var (
	logBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	roleStyles    = map[string]lipgloss.Style{
		"you":   lipgloss.NewStyle().Bold(true),
		"kotae": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		"error": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)
