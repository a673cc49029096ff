package render

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultWidth is used when the terminal width cannot be determined.
	DefaultWidth = 80
	minWidth     = 20
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or DefaultWidth.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	if w < minWidth {
		return minWidth
	}
	return w
}

// ColorProfile returns the colour profile to use for f, honouring NO_COLOR.
func ColorProfile(f *os.File) termenv.Profile {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(f) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).Profile
}

// Terminal is a sink that redraws the live region in place by moving the
// cursor back over the previous frame and erasing to the end of the screen.
type Terminal struct {
	out    io.Writer
	width  int
	format Formatter

	lines int    // terminal lines occupied by the current frame
	last  string // formatted output of the current frame
}

// NewTerminal creates a terminal sink. width is used for wrap accounting.
func NewTerminal(out io.Writer, width int, format Formatter) *Terminal {
	if format == nil {
		format = PlainText
	}
	return &Terminal{out: out, width: width, format: format}
}

// Draw replaces the previous frame. An identical frame is not rewritten.
func (t *Terminal) Draw(frame Frame) error {
	s := t.format.Format(frame)
	if s == t.last {
		return nil
	}

	out := s
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	// One write per frame keeps the erase and the redraw together.
	if _, err := io.WriteString(t.out, t.clearSeq()+out); err != nil {
		return err
	}

	t.lines = t.CountLines(out)
	t.last = s
	return nil
}

// Commit leaves the current frame on screen; the next Draw starts a new
// region below it.
func (t *Terminal) Commit() error {
	t.lines = 0
	t.last = ""
	return nil
}

func (t *Terminal) clearSeq() string {
	if t.lines <= 0 {
		return ""
	}
	return ansi.CursorUp(t.lines) + ansi.CursorHorizontalAbsolute(1) + ansi.EraseDisplay(0)
}

// CountLines returns how many terminal rows s occupies, accounting for
// wrapping at the sink width and ignoring escape sequences.
func (t *Terminal) CountLines(s string) int {
	if s == "" {
		return 0
	}

	lines := strings.Split(s, "\n")
	total := 0
	for i, line := range lines {
		if i == len(lines)-1 && line == "" {
			continue
		}
		w := ansi.StringWidth(line)
		switch {
		case w == 0:
			total++
		case t.width > 0:
			total += (w + t.width - 1) / t.width
		default:
			total++
		}
	}
	return total
}

// Plain is a sink for non-terminal output: nothing is drawn live and the
// final frame is written as plain text on Commit.
type Plain struct {
	out  io.Writer
	last Frame
}

// NewPlain creates a plain sink.
func NewPlain(out io.Writer) *Plain {
	return &Plain{out: out}
}

// Draw records the frame.
func (p *Plain) Draw(frame Frame) error {
	p.last = append(p.last[:0], frame...)
	return nil
}

// Commit writes the last frame.
func (p *Plain) Commit() error {
	text := p.last.Text()
	p.last = p.last[:0]
	if text == "" {
		return nil
	}
	_, err := io.WriteString(p.out, text+"\n")
	return err
}
