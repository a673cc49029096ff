// Package tui provides the full-screen chat interface using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ai/thinkchat/internal/chat"
	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/render"
	"github.com/ai/thinkchat/internal/repl"
)

const doubleEscWindow = 600 * time.Millisecond

// KeyMap defines the keybindings
type KeyMap struct {
	Send           key.Binding
	Cancel         key.Binding
	Quit           key.Binding
	ToggleThinking key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel (twice to exit)"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		ToggleThinking: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle thinking"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.ToggleThinking, k.PageUp, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Cancel, k.Quit},
		{k.ToggleThinking, k.PageUp, k.PageDown},
	}
}

// Config wires the interface to a session.
type Config struct {
	Session *chat.Session
	Sink    *Sink
	Gate    *gate.Gate
	Lister  gate.Lister // for /model; nil skips validation
	// Formatter builds the formatter for a given content width. Defaults
	// to plain text.
	Formatter func(width int) render.Formatter
}

// Model is the main TUI model
type Model struct {
	session   *chat.Session
	gate      *gate.Gate
	lister    gate.Lister
	formatter func(width int) render.Formatter
	format    render.Formatter

	keyMap      KeyMap
	help        help.Model
	spinner     spinner.Model
	view        viewport.Model
	promptInput textinput.Model

	width  int
	height int

	entries      []entry
	live         render.Frame // frame of the exchange in flight
	streaming    bool
	showThinking bool
	cancel       context.CancelFunc
	lastEscTime  time.Time
	now          func() time.Time
	quitting     bool
}

// frameMsg carries a redraw of the live exchange
type frameMsg struct {
	frame render.Frame
}

// commitMsg ends the live region of an exchange
type commitMsg struct{}

// exchangeDoneMsg carries the result of Ask
type exchangeDoneMsg struct {
	exchange *chat.Exchange
	err      error
}

// New creates a new TUI model
func New(cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pi := textinput.New()
	pi.Placeholder = "Ask me anything... (Enter to send)"
	pi.CharLimit = 4096
	pi.Prompt = repl.InputPrompt
	pi.Focus()

	formatter := cfg.Formatter
	if formatter == nil {
		formatter = func(int) render.Formatter { return render.PlainText }
	}
	g := cfg.Gate
	if g == nil {
		g = gate.New()
	}

	return Model{
		session:      cfg.Session,
		gate:         g,
		lister:       cfg.Lister,
		formatter:    formatter,
		format:       formatter(render.DefaultWidth),
		keyMap:       DefaultKeyMap(),
		help:         help.New(),
		spinner:      s,
		view:         viewport.New(render.DefaultWidth, 20),
		promptInput:  pi,
		showThinking: true,
		now:          time.Now,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.format = m.formatter(m.contentWidth())
		m.updateViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case frameMsg:
		m.live = msg.frame
		m.refresh()
		return m, nil

	case commitMsg:
		if len(m.live) > 0 {
			m.entries = append(m.entries, entry{kind: entryExchange, frame: m.live})
		}
		m.live = nil
		m.refresh()
		return m, nil

	case exchangeDoneMsg:
		m.streaming = false
		m.cancel = nil
		m.appendResult(msg)
		m.refresh()
		return m, nil

	case modelCheckedMsg:
		m.handleModelChecked(msg)
		return m, nil
	}

	var inputCmd, viewCmd tea.Cmd
	m.promptInput, inputCmd = m.promptInput.Update(msg)
	m.view, viewCmd = m.view.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		return m.handleEscape()

	case key.Matches(msg, m.keyMap.ToggleThinking):
		m.showThinking = !m.showThinking
		m.invalidate()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.view.ViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.view.ViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		input := strings.TrimSpace(m.promptInput.Value())
		if input == "" || m.streaming {
			return m, nil
		}
		m.promptInput.Reset()

		if repl.IsExitWord(input) {
			m.quitting = true
			return m, tea.Quit
		}
		if strings.HasPrefix(input, "/") {
			return m.executeCommand(input)
		}

		var cmd tea.Cmd
		m, cmd = m.submit(input)
		return m, tea.Batch(cmd, m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

// submit starts an exchange. The returned command runs it to completion.
func (m Model) submit(input string) (Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streaming = true
	m.entries = append(m.entries, entry{kind: entryQuestion, text: input})
	m.refresh()

	session := m.session
	return m, func() tea.Msg {
		defer cancel()
		ex, err := session.Ask(ctx, input)
		return exchangeDoneMsg{exchange: ex, err: err}
	}
}

func (m Model) handleEscape() (tea.Model, tea.Cmd) {
	if m.streaming && m.cancel != nil {
		m.cancel()
		m.lastEscTime = time.Time{}
		return m, nil
	}

	now := m.now()

	// Check for double ESC
	if now.Sub(m.lastEscTime) < doubleEscWindow {
		m.quitting = true
		return m, tea.Quit
	}

	m.lastEscTime = now
	m.promptInput.Reset()
	return m, nil
}

func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)

	switch parts[0] {
	case "/model", "/m":
		if len(parts) < 2 {
			m.note(fmt.Sprintf("Current model: %s", m.session.Model()))
			break
		}
		return m, m.switchModel(parts[1])

	case "/clear":
		m.entries = nil

	case "/help":
		m.note("Commands: /model [name], /clear, /help, quit")

	default:
		m.note(fmt.Sprintf("unknown command: %s", parts[0]))
	}

	m.refresh()
	return m, nil
}

// modelCheckedMsg carries the outcome of /model validation
type modelCheckedMsg struct {
	model  string
	result gate.Result
	err    error
}

func (m Model) switchModel(model string) tea.Cmd {
	if m.lister == nil {
		return func() tea.Msg {
			return modelCheckedMsg{model: model, result: gate.Result{Requested: model, Installed: true, FamilySupported: true}}
		}
	}
	g, lister := m.gate, m.lister
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result, err := g.Check(ctx, lister, model)
		return modelCheckedMsg{model: model, result: result, err: err}
	}
}

func (m *Model) handleModelChecked(msg modelCheckedMsg) {
	switch {
	case msg.err != nil:
		m.note("Error checking models: " + msg.err.Error())
	case !msg.result.OK():
		m.note(strings.TrimRight(msg.result.Diagnostic(), "\n"))
	default:
		m.session.SetModel(msg.model)
		m.note("Switched to model: " + msg.model)
	}
	m.refresh()
}

func (m *Model) appendResult(msg exchangeDoneMsg) {
	var terr *chat.TransportError
	switch {
	case msg.err == nil:
		if ex := msg.exchange; ex != nil && ex.Usage != nil {
			m.note(fmt.Sprintf("(%d tokens, %.1f tok/s, %s)",
				ex.Usage.CompletionTokens, ex.Usage.TokensPerSecond(), ex.Duration.Round(100*time.Millisecond)))
		}
	case errors.Is(msg.err, chat.ErrCancelled):
		m.note("[Cancelled]")
	case errors.As(msg.err, &terr):
		m.errorNote("Error: " + terr.Err.Error())
	default:
		m.errorNote("Error: " + msg.err.Error())
	}
}

func (m *Model) note(text string) {
	m.entries = append(m.entries, entry{kind: entryNote, text: text})
}

func (m *Model) errorNote(text string) {
	m.entries = append(m.entries, entry{kind: entryError, text: text})
}
