// Package chat runs one exchange at a time against a streaming backend:
// it sends the full conversation, renders the thinking and answer streams
// as they arrive, and folds the finished answer back into the history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ai/thinkchat/internal/conversation"
	"github.com/ai/thinkchat/internal/render"
	"github.com/ai/thinkchat/internal/stream"
)

// State is the lifecycle state of a session.
type State int32

const (
	StateIdle State = iota
	StateAwaitingInput
	StateSending
	StateStreaming
	StateCommitting
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidState is returned for empty user input.
	ErrInvalidState = conversation.ErrInvalidState
	// ErrBusy is returned when an exchange is already in flight.
	ErrBusy = errors.New("exchange already in progress")
	// ErrCancelled wraps the context error of a cancelled exchange.
	ErrCancelled = errors.New("exchange cancelled")
)

// Phase is the part of an exchange in which a transport failure happened.
type Phase string

const (
	PhaseSend   Phase = "send"
	PhaseStream Phase = "stream"
)

// TransportError aborts an exchange but not the session.
type TransportError struct {
	Phase Phase
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Phase, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Backend streams a model response for the given history.
type Backend interface {
	StreamChat(ctx context.Context, model string, history []conversation.Turn, think bool) (<-chan stream.Fragment, error)
}

// Recorder receives finished turns. Failures are logged and otherwise
// ignored.
type Recorder interface {
	RecordTurn(exchangeID string, role conversation.Role, content string) error
	RecordThinking(exchangeID, thinking string, elapsed time.Duration) error
	RecordFailure(exchangeID string, err error) error
}

// Exchange is the result of one Ask.
type Exchange struct {
	ID        uuid.UUID
	Model     string
	Prompt    string
	Thinking  string // without the header
	Answer    string
	Committed bool
	Fragments int
	Usage     *stream.Usage
	Duration  time.Duration
}

// Config configures a Session.
type Config struct {
	Model        string
	Backend      Backend
	Conversation *conversation.State
	Sink         render.Sink
	// Cadence returns the redraw cadence for a new exchange. Defaults to
	// render.DefaultRefreshRate.
	Cadence  func() render.Cadence
	Logger   *slog.Logger
	Recorder Recorder
}

// Session owns the conversation and runs exchanges one at a time.
type Session struct {
	model    atomic.Value // string
	backend  Backend
	conv     *conversation.State
	sink     render.Sink
	cadence  func() render.Cadence
	logger   *slog.Logger
	recorder Recorder

	state atomic.Int32
}

// NewSession creates a session in the Idle state.
func NewSession(cfg Config) *Session {
	s := &Session{
		backend:  cfg.Backend,
		conv:     cfg.Conversation,
		sink:     cfg.Sink,
		cadence:  cfg.Cadence,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	s.model.Store(cfg.Model)
	if s.conv == nil {
		s.conv = conversation.New("")
	}
	if s.cadence == nil {
		s.cadence = func() render.Cadence { return render.NewCadence(render.DefaultRefreshRate) }
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Model returns the model used for new exchanges.
func (s *Session) Model() string { return s.model.Load().(string) }

// SetModel changes the model used for new exchanges.
func (s *Session) SetModel(model string) { s.model.Store(model) }

// History returns a copy of the conversation.
func (s *Session) History() []conversation.Turn { return s.conv.History() }

// AwaitInput marks the session as waiting for user input.
func (s *Session) AwaitInput() error {
	if s.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingInput)) ||
		s.State() == StateAwaitingInput {
		return nil
	}
	return ErrBusy
}

func (s *Session) acquire() bool {
	return s.state.CompareAndSwap(int32(StateIdle), int32(StateSending)) ||
		s.state.CompareAndSwap(int32(StateAwaitingInput), int32(StateSending))
}

func (s *Session) set(st State) { s.state.Store(int32(st)) }

// Ask runs one exchange. On success the answer has been appended to the
// conversation. On failure the user turn stays and no assistant turn is
// added; the returned Exchange holds whatever was received.
func (s *Session) Ask(ctx context.Context, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidState
	}
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer s.set(StateIdle)

	ex := &Exchange{ID: uuid.New(), Model: s.Model(), Prompt: text}
	id := ex.ID.String()
	logger := s.logger.With("exchange", id, "model", ex.Model)
	start := time.Now()

	if err := s.conv.AppendUser(text); err != nil {
		return nil, err
	}
	s.record(logger, func(r Recorder) error { return r.RecordTurn(id, conversation.RoleUser, text) })

	renderer := render.NewRenderer(s.sink, s.cadence(), logger)

	fragments, err := s.backend.StreamChat(ctx, ex.Model, s.conv.History(), true)
	if err != nil {
		return ex, s.fail(ctx, logger, ex, renderer, start, PhaseSend, err)
	}
	s.set(StateStreaming)

	if err := s.pump(ctx, fragments, renderer, ex); err != nil {
		return ex, s.fail(ctx, logger, ex, renderer, start, PhaseStream, err)
	}

	s.set(StateCommitting)
	if err := renderer.Finish(); err != nil {
		logger.Warn("final render failed", "error", err)
	}
	ex.Thinking = strings.TrimPrefix(renderer.Thinking(), render.ThinkingHeader)
	ex.Answer = renderer.Answer()
	ex.Committed = s.conv.AppendAssistant(ex.Answer)
	ex.Duration = time.Since(start)

	if ex.Committed {
		s.record(logger, func(r Recorder) error { return r.RecordTurn(id, conversation.RoleAssistant, ex.Answer) })
	}
	if ex.Thinking != "" {
		s.record(logger, func(r Recorder) error { return r.RecordThinking(id, ex.Thinking, ex.Duration) })
	}

	attrs := []any{
		"fragments", ex.Fragments,
		"thinking_chars", len(ex.Thinking),
		"answer_chars", len(ex.Answer),
		"committed", ex.Committed,
		"duration", ex.Duration,
		"turns", s.conv.Len(),
	}
	if u := ex.Usage; u != nil {
		attrs = append(attrs,
			"prompt_tokens", u.PromptTokens,
			"completion_tokens", u.CompletionTokens,
			"tokens_per_sec", u.TokensPerSecond(),
		)
	}
	logger.Info("exchange complete", attrs...)

	return ex, nil
}

// pump feeds fragments to the renderer until the stream is exhausted, a
// fragment reports an error, or ctx is done.
func (s *Session) pump(ctx context.Context, fragments <-chan stream.Fragment, r *render.Renderer, ex *Exchange) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-fragments:
			if !ok {
				return nil
			}
			ex.Fragments++
			if f.Err != nil {
				return f.Err
			}
			for _, d := range stream.Classify(f) {
				r.OnDelta(d.Channel, d.Text)
			}
			if f.Usage != nil {
				ex.Usage = f.Usage
			}
			if f.Done {
				return nil
			}
		}
	}
}

func (s *Session) fail(ctx context.Context, logger *slog.Logger, ex *Exchange, r *render.Renderer, start time.Time, phase Phase, cause error) error {
	if err := r.Finish(); err != nil {
		logger.Warn("final render failed", "error", err)
	}
	ex.Thinking = strings.TrimPrefix(r.Thinking(), render.ThinkingHeader)
	ex.Answer = r.Answer()
	ex.Duration = time.Since(start)

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
	} else {
		err = &TransportError{Phase: phase, Err: cause}
	}

	logger.Error("exchange failed",
		"phase", phase,
		"error", cause,
		"fragments", ex.Fragments,
		"duration", ex.Duration,
	)
	s.record(logger, func(r Recorder) error { return r.RecordFailure(ex.ID.String(), err) })
	return err
}

func (s *Session) record(logger *slog.Logger, fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		logger.Warn("transcript write failed", "error", err)
	}
}
