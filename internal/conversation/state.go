// Package conversation holds the append-only, role-tagged history that is
// resent to the backend on every request.
package conversation

import (
	"errors"
	"strings"
)

// Role is the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrInvalidState is returned when an empty user turn is appended.
var ErrInvalidState = errors.New("empty user input")

// Turn is one role-attributed message. Turns are never modified once appended.
type Turn struct {
	Role    Role
	Content string
}

// State is the ordered conversation history. The system turn, if any, is
// always first. It is owned by a single chat session and is not safe for
// concurrent writers.
type State struct {
	turns []Turn
}

// New creates a conversation seeded with a system turn. A blank prompt
// produces an empty history.
func New(systemPrompt string) *State {
	s := &State{}
	if strings.TrimSpace(systemPrompt) != "" {
		s.turns = append(s.turns, Turn{Role: RoleSystem, Content: systemPrompt})
	}
	return s
}

// AppendUser records a user turn. Whitespace-only text is rejected.
func (s *State) AppendUser(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidState
	}
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: text})
	return nil
}

// AppendAssistant records an assistant turn and reports whether it did.
// Empty text is ignored: an exchange may legitimately produce no answer.
func (s *State) AppendAssistant(text string) bool {
	if text == "" {
		return false
	}
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: text})
	return true
}

// History returns a copy of the turns in insertion order.
func (s *State) History() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *State) Len() int {
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *State) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}
