package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ai/thinkchat/internal/render"
	"github.com/ai/thinkchat/internal/repl"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	inputBorder   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)
)

type entryKind int

const (
	entryQuestion entryKind = iota
	entryExchange
	entryNote
	entryError
)

// entry is one item of the scrollback. rendered caches the formatted text
// for the current width and thinking visibility.
type entry struct {
	kind     entryKind
	text     string
	frame    render.Frame
	rendered string
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.view.View(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	state := "ready"
	if m.session != nil {
		state = m.session.State().String()
	}
	model := ""
	if m.session != nil {
		model = m.session.Model()
	}
	title := headerStyle.Render("💭 Thinking Chat (" + model + ")")
	status := statusStyle.Render(" " + state)
	if m.streaming {
		status = " " + m.spinner.View() + statusStyle.Render(state)
	}
	return title + status
}

func (m Model) renderFooter() string {
	input := inputBorder.Width(max(m.width-4, 10)).Render(m.promptInput.View())

	var status string
	if m.showThinking {
		status = "thinking: shown"
	} else {
		status = "thinking: hidden"
	}
	status = fmt.Sprintf("%s | %d entries | %s", status, len(m.entries), m.help.View(m.keyMap))

	return lipgloss.JoinVertical(lipgloss.Left, input, statusStyle.Render(status))
}

// chrome is the number of rows taken by the header and footer.
const chrome = 1 + 3 + 1

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return render.DefaultWidth
	}
	return max(m.width-2, 10)
}

func (m *Model) updateViewport() {
	m.view.Width = m.width
	m.view.Height = max(m.height-chrome, 1)
	m.promptInput.Width = max(m.width-8-len(repl.InputPrompt), 10)
	m.invalidate()
	m.refresh()
}

// invalidate drops the cached rendering of every entry.
func (m *Model) invalidate() {
	for i := range m.entries {
		m.entries[i].rendered = ""
	}
}

// refresh rebuilds the viewport content from the scrollback and the live
// frame, following the bottom if the view was already there.
func (m *Model) refresh() {
	follow := m.view.AtBottom() || m.streaming

	parts := make([]string, 0, len(m.entries)+1)
	for i := range m.entries {
		e := &m.entries[i]
		if e.rendered == "" {
			e.rendered = m.renderEntry(*e)
		}
		if e.rendered != "" {
			parts = append(parts, e.rendered)
		}
	}
	if live := m.formatFrame(m.live); live != "" {
		parts = append(parts, live)
	}

	m.view.SetContent(strings.Join(parts, "\n\n"))
	if follow {
		m.view.GotoBottom()
	}
}

func (m *Model) renderEntry(e entry) string {
	switch e.kind {
	case entryQuestion:
		return questionStyle.Render(repl.InputPrompt) + e.text
	case entryExchange:
		return m.formatFrame(e.frame)
	case entryError:
		return errorStyle.Render(e.text)
	default:
		return noteStyle.Render(e.text)
	}
}

// formatFrame renders a frame, leaving out the thinking trace when hidden.
func (m *Model) formatFrame(frame render.Frame) string {
	if len(frame) == 0 {
		return ""
	}
	if !m.showThinking {
		visible := make(render.Frame, 0, len(frame))
		for _, b := range frame {
			if b.Style != render.StyleSecondary {
				visible = append(visible, b)
			}
		}
		frame = visible
	}
	return strings.TrimRight(m.format.Format(frame), "\n")
}
