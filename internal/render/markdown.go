package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// secondaryColor greys out the thinking trace.
const secondaryColor = "244"

// Markdown renders frame blocks with glamour. Secondary blocks use the same
// style with a grey document colour.
type Markdown struct {
	primary   *glamour.TermRenderer
	secondary *glamour.TermRenderer
	faint     lipgloss.Style
}

// StyleFor returns the glamour style for the terminal background.
func StyleFor(dark bool) ansi.StyleConfig {
	if dark {
		return styles.DarkStyleConfig
	}
	return styles.LightStyleConfig
}

// NewMarkdown creates a markdown formatter wrapping at width.
func NewMarkdown(width int, base ansi.StyleConfig) (*Markdown, error) {
	margin := uint(0)
	base.Document.Margin = &margin
	base.Document.BlockPrefix = ""
	base.Document.BlockSuffix = ""

	primary, err := glamour.NewTermRenderer(
		glamour.WithStyles(base),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	dim := base
	grey := secondaryColor
	dim.Document.Color = &grey
	dim.Document.Faint = boolPtr(true)

	secondary, err := glamour.NewTermRenderer(
		glamour.WithStyles(dim),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	return &Markdown{
		primary:   primary,
		secondary: secondary,
		faint:     lipgloss.NewStyle().Faint(true),
	}, nil
}

// Format renders each non-empty block and stacks them vertically.
func (m *Markdown) Format(frame Frame) string {
	parts := make([]string, 0, len(frame))
	for _, b := range frame {
		if b.Text == "" {
			continue
		}
		parts = append(parts, m.renderBlock(b))
	}
	return strings.Join(parts, "\n\n")
}

// renderBlock falls back to the raw text if glamour fails.
func (m *Markdown) renderBlock(b Block) string {
	r := m.primary
	if b.Style == StyleSecondary {
		r = m.secondary
	}

	out, err := r.Render(b.Text)
	if err != nil {
		if b.Style == StyleSecondary {
			return m.faint.Render(b.Text)
		}
		return b.Text
	}
	return strings.Trim(out, "\n")
}

func boolPtr(b bool) *bool { return &b }
