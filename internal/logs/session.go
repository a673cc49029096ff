// Package logs writes an append-only JSONL transcript of a chat session.
package logs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ai/thinkchat/internal/conversation"
)

// Entry types besides the conversation roles.
const (
	TypeThinking = "thinking"
	TypeFailure  = "failure"
)

// Session represents a transcript session
type Session struct {
	ID          string
	StartTime   time.Time
	LogDir      string
	transcript  *os.File
	thinkingLog *os.File
	mu          sync.Mutex
}

// Entry represents a log entry
type Entry struct {
	Timestamp  time.Time              `json:"timestamp"`
	ExchangeID string                 `json:"exchange_id,omitempty"`
	Type       string                 `json:"type"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewSession creates <baseDir>/<YYYYMMDD-HHMMSS> with transcript.jsonl and
// thinking.jsonl.
func NewSession(baseDir string) (*Session, error) {
	now := time.Now()
	sessionID := now.Format("20060102-150405")
	logDir := filepath.Join(baseDir, sessionID)

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	transcript, err := openAppend(filepath.Join(logDir, "transcript.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	thinkingLog, err := openAppend(filepath.Join(logDir, "thinking.jsonl"))
	if err != nil {
		transcript.Close()
		return nil, fmt.Errorf("failed to create thinking log file: %w", err)
	}

	return &Session{
		ID:          sessionID,
		StartTime:   now,
		LogDir:      logDir,
		transcript:  transcript,
		thinkingLog: thinkingLog,
	}, nil
}

// Two sessions started within the same second share a directory.
func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (s *Session) write(f *os.File, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))
	return err
}

// RecordTurn logs a conversation turn
func (s *Session) RecordTurn(exchangeID string, role conversation.Role, content string) error {
	return s.write(s.transcript, Entry{
		Timestamp:  time.Now(),
		ExchangeID: exchangeID,
		Type:       string(role),
		Content:    content,
	})
}

// RecordThinking logs the thinking trace of an exchange
func (s *Session) RecordThinking(exchangeID, thinking string, elapsed time.Duration) error {
	return s.write(s.thinkingLog, Entry{
		Timestamp:  time.Now(),
		ExchangeID: exchangeID,
		Type:       TypeThinking,
		Content:    thinking,
		Metadata: map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
			"length":      len(thinking),
		},
	})
}

// RecordFailure logs an exchange that did not complete
func (s *Session) RecordFailure(exchangeID string, err error) error {
	return s.write(s.transcript, Entry{
		Timestamp:  time.Now(),
		ExchangeID: exchangeID,
		Type:       TypeFailure,
		Content:    err.Error(),
	})
}

// Close closes the session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.transcript != nil {
		if err := s.transcript.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.thinkingLog != nil {
		if err := s.thinkingLog.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Path returns the log directory path
func (s *Session) Path() string {
	return s.LogDir
}

// ReadTranscript reads all entries from a session's transcript. Malformed
// lines are skipped.
func ReadTranscript(sessionDir string) ([]Entry, error) {
	return readEntries(filepath.Join(sessionDir, "transcript.jsonl"))
}

// ReadThinking reads all entries from a session's thinking log.
func ReadThinking(sessionDir string) ([]Entry, error) {
	return readEntries(filepath.Join(sessionDir, "thinking.jsonl"))
}

func readEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
