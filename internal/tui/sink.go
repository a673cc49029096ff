package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ai/thinkchat/internal/render"
)

// ErrDetached is returned by a Sink that has no program to draw into.
var ErrDetached = errors.New("tui sink not attached")

// Sink forwards frames to a running program as messages. It satisfies
// render.Sink, so a session can draw into the interface from the
// goroutine running the exchange.
type Sink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewSink returns a detached sink.
func NewSink() *Sink { return &Sink{} }

// Attach routes messages to send, typically (*tea.Program).Send.
func (s *Sink) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

func (s *Sink) deliver(msg tea.Msg) error {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send == nil {
		return ErrDetached
	}
	send(msg)
	return nil
}

// Draw implements render.Sink. The frame is copied.
func (s *Sink) Draw(frame render.Frame) error {
	return s.deliver(frameMsg{frame: append(render.Frame(nil), frame...)})
}

// Commit implements render.Sink.
func (s *Sink) Commit() error {
	return s.deliver(commitMsg{})
}

// Run starts the full-screen interface and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Sink == nil {
		return errors.New("tui: no sink configured")
	}

	p := tea.NewProgram(New(cfg),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	cfg.Sink.Attach(p.Send)
	defer cfg.Sink.Attach(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
