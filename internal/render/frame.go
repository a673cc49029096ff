// Package render turns the thinking and answer buffers of an exchange into
// frames and redraws them in place on a display sink.
package render

import (
	"errors"
	"strings"
)

// ErrRender wraps display sink failures.
var ErrRender = errors.New("render failed")

// Style selects how a block is displayed.
type Style int

const (
	StylePrimary   Style = iota // the answer
	StyleSecondary              // the thinking trace, dimmed
)

func (s Style) String() string {
	switch s {
	case StylePrimary:
		return "primary"
	case StyleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Block is a formatted blob of markdown with a display style.
type Block struct {
	Text  string
	Style Style
}

// Frame is the complete content of the live region for one redraw.
type Frame []Block

// Text joins the raw block texts, skipping empty blocks.
func (f Frame) Text() string {
	parts := make([]string, 0, len(f))
	for _, b := range f {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Sink displays frames. Each Draw replaces whatever the previous Draw of the
// same exchange displayed; Commit ends the exchange's live region and leaves
// the last frame in place.
type Sink interface {
	Draw(frame Frame) error
	Commit() error
}

// Formatter converts a frame to the string written to the terminal.
type Formatter interface {
	Format(frame Frame) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(Frame) string

// Format calls f(frame).
func (f FormatterFunc) Format(frame Frame) string {
	return f(frame)
}

// PlainText formats a frame without any markup rendering.
var PlainText Formatter = FormatterFunc(Frame.Text)
