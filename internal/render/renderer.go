package render

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ai/thinkchat/internal/stream"
)

// ThinkingHeader prefixes the thinking buffer once the first thinking delta
// arrives.
const ThinkingHeader = "🤔 **Thinking:**\n\n"

// DefaultRefreshRate is the default number of redraws per second.
const DefaultRefreshRate = 8

// Cadence decides whether a redraw may happen now. *rate.Limiter satisfies it.
type Cadence interface {
	Allow() bool
}

// NewCadence returns a cadence allowing hz redraws per second. A non-positive
// rate disables limiting.
func NewCadence(hz float64) Cadence {
	if hz <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(hz), 1)
}

type everyDelta struct{}

func (everyDelta) Allow() bool { return true }

// EveryDelta redraws after every delta.
var EveryDelta Cadence = everyDelta{}

// Renderer accumulates the thinking and answer text of one exchange and
// redraws the sink at the pace allowed by its cadence.
type Renderer struct {
	sink    Sink
	cadence Cadence
	logger  *slog.Logger

	thinking        strings.Builder
	answer          strings.Builder
	thinkingStarted bool

	live  bool // cleared after a sink failure
	draws int
}

// NewRenderer creates a renderer for a single exchange.
func NewRenderer(sink Sink, cadence Cadence, logger *slog.Logger) *Renderer {
	if cadence == nil {
		cadence = EveryDelta
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{
		sink:    sink,
		cadence: cadence,
		logger:  logger,
		live:    true,
	}
}

// OnDelta appends text to the channel's buffer and redraws if the cadence
// allows it.
func (r *Renderer) OnDelta(ch stream.Channel, text string) {
	if text == "" {
		return
	}

	switch ch {
	case stream.ChannelThinking:
		if !r.thinkingStarted {
			r.thinking.WriteString(ThinkingHeader)
			r.thinkingStarted = true
		}
		r.thinking.WriteString(text)
	case stream.ChannelAnswer:
		r.answer.WriteString(text)
	default:
		return
	}

	if r.live && r.cadence.Allow() {
		r.draw()
	}
}

// Frame builds the frame for the current buffers. The thinking block is only
// present once thinking text has arrived.
func (r *Renderer) Frame() Frame {
	frame := make(Frame, 0, 2)
	if r.thinking.Len() > 0 {
		frame = append(frame, Block{Text: r.thinking.String(), Style: StyleSecondary})
	}
	return append(frame, Block{Text: r.answer.String(), Style: StylePrimary})
}

// Thinking returns the thinking buffer, header included.
func (r *Renderer) Thinking() string { return r.thinking.String() }

// Answer returns the answer buffer.
func (r *Renderer) Answer() string { return r.answer.String() }

// ThinkingStarted reports whether any thinking text has arrived.
func (r *Renderer) ThinkingStarted() bool { return r.thinkingStarted }

// Draws returns how many frames were sent to the sink.
func (r *Renderer) Draws() int { return r.draws }

// Live reports whether live updates are still enabled.
func (r *Renderer) Live() bool { return r.live }

func (r *Renderer) draw() {
	r.draws++
	if err := r.sink.Draw(r.Frame()); err != nil {
		r.live = false
		r.logger.Warn("live render failed, disabling updates for this exchange", "error", err)
	}
}

// Finish draws the complete buffers once more, independent of the cadence,
// and commits the live region. Errors are best-effort: the commit is
// attempted even if the final draw fails.
func (r *Renderer) Finish() error {
	r.draws++
	drawErr := r.sink.Draw(r.Frame())
	commitErr := r.sink.Commit()

	switch {
	case drawErr != nil:
		return fmt.Errorf("%w: %v", ErrRender, drawErr)
	case commitErr != nil:
		return fmt.Errorf("%w: %v", ErrRender, commitErr)
	}
	return nil
}
