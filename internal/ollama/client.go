// Package ollama provides a client for the Ollama chat API with streaming
// and thinking support.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ai/thinkchat/internal/conversation"
	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/stream"
)

// Default configuration
const (
	DefaultLocalBaseURL = "http://localhost:11434"
	DefaultCloudBaseURL = "https://ollama.com"
	// DefaultTimeout bounds a whole request, including a streamed body.
	DefaultTimeout = 10 * time.Minute

	probeTimeout = 5 * time.Second
	maxLineSize  = 1024 * 1024
)

var (
	// ErrNoModel is returned when a chat request names no model.
	ErrNoModel = errors.New("no model selected")
	// ErrStreamTruncated is reported when a response body ends before a
	// done:true line.
	ErrStreamTruncated = errors.New("stream ended before completion")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Message represents a chat message
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"` // Thinking trace (reasoning tokens)
}

// ThinkValue represents the think field which can be boolean or string
type ThinkValue struct {
	value interface{} // bool or string
}

// MarshalJSON marshals ThinkValue to JSON (bool or string)
func (t ThinkValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.value)
}

// NewThinkValueBool creates a ThinkValue with boolean
func NewThinkValueBool(v bool) *ThinkValue {
	return &ThinkValue{value: v}
}

// NewThinkValueString creates a ThinkValue with string level
func NewThinkValueString(level string) *ThinkValue {
	return &ThinkValue{value: level}
}

// ChatRequest represents a chat API request
type ChatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Think    *ThinkValue `json:"think,omitempty"` // true/false or "low"/"medium"/"high"
}

// ChatResponse represents a streaming chat response line
type ChatResponse struct {
	Model              string  `json:"model"`
	CreatedAt          string  `json:"created_at"`
	Message            Message `json:"message"`
	Done               bool    `json:"done"`
	DoneReason         string  `json:"done_reason,omitempty"`
	Error              string  `json:"error,omitempty"`
	TotalDuration      int64   `json:"total_duration,omitempty"`
	LoadDuration       int64   `json:"load_duration,omitempty"`
	PromptEvalCount    int     `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64   `json:"prompt_eval_duration,omitempty"`
	EvalCount          int     `json:"eval_count,omitempty"`
	EvalDuration       int64   `json:"eval_duration,omitempty"`
}

// Usage converts the final line's counters.
func (r ChatResponse) Usage() *stream.Usage {
	return &stream.Usage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		PromptDuration:   time.Duration(r.PromptEvalDuration),
		EvalDuration:     time.Duration(r.EvalDuration),
		TotalDuration:    time.Duration(r.TotalDuration),
	}
}

// ModelInfo represents information about a model
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ID returns the identifier used to address the model in chat requests.
func (m ModelInfo) ID() string {
	if m.Model != "" {
		return m.Model
	}
	return m.Name
}

// TagsResponse represents the response from /api/tags
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// StreamChunk represents one decoded line of a streaming response
type StreamChunk struct {
	Response ChatResponse
	Error    error
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the Ollama API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. An API key without a base URL targets the
// cloud endpoint.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
		if cfg.APIKey != "" {
			baseURL = DefaultCloudBaseURL
		}
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// NewClientFromEnv creates a client from OLLAMA_HOST and OLLAMA_API_KEY.
func NewClientFromEnv() *Client {
	return NewClient(Config{
		BaseURL: os.Getenv("OLLAMA_HOST"),
		APIKey:  os.Getenv("OLLAMA_API_KEY"),
	})
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}

// ListModels fetches available models from /api/tags
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var tagsResp TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return tagsResp.Models, nil
}

// Directory returns the installed models keyed by identifier.
func (c *Client) Directory(ctx context.Context) (gate.Directory, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	dir := make(gate.Directory, len(models))
	for _, m := range models {
		dir[m.ID()] = gate.Meta{Size: m.Size, Digest: m.Digest, ModifiedAt: m.ModifiedAt}
	}
	return dir, nil
}

// IsAvailable checks if Ollama is reachable
func (c *Client) IsAvailable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach Ollama at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// ChatStream sends a streaming chat request and returns a channel of
// decoded lines. The channel is closed after the done line, after an error
// chunk, or when ctx is cancelled.
func (c *Client) ChatStream(ctx context.Context, chatReq ChatRequest) (<-chan StreamChunk, error) {
	if chatReq.Model == "" {
		return nil, ErrNoModel
	}
	chatReq.Stream = true

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	ch := make(chan StreamChunk, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		send := func(chunk StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				send(StreamChunk{Error: err})
				return
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chatResp ChatResponse
			if err := json.Unmarshal(line, &chatResp); err != nil {
				send(StreamChunk{Error: fmt.Errorf("failed to decode chunk: %w", err)})
				return
			}
			if chatResp.Error != "" {
				send(StreamChunk{Error: fmt.Errorf("server error: %s", chatResp.Error)})
				return
			}

			if !send(StreamChunk{Response: chatResp}) || chatResp.Done {
				return
			}
		}

		switch err := scanner.Err(); {
		case ctx.Err() != nil:
			send(StreamChunk{Error: ctx.Err()})
		case err != nil:
			send(StreamChunk{Error: fmt.Errorf("scanner error: %w", err)})
		default:
			send(StreamChunk{Error: ErrStreamTruncated})
		}
	}()

	return ch, nil
}

// StreamChat issues a chat request for the full history and converts the
// response into fragments.
func (c *Client) StreamChat(ctx context.Context, model string, history []conversation.Turn, think bool) (<-chan stream.Fragment, error) {
	chunks, err := c.ChatStream(ctx, ChatRequest{
		Model:    model,
		Messages: Messages(history),
		Think:    NewThinkValueBool(think),
	})
	if err != nil {
		return nil, err
	}

	out := make(chan stream.Fragment)
	go func() {
		defer close(out)
		for chunk := range chunks {
			f := Fragment(chunk)
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			if f.Done || f.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// Messages converts conversation turns to wire messages.
func Messages(history []conversation.Turn) []Message {
	msgs := make([]Message, len(history))
	for i, t := range history {
		msgs[i] = Message{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}

// Fragment converts one decoded line into a fragment.
func Fragment(chunk StreamChunk) stream.Fragment {
	if chunk.Error != nil {
		return stream.Fragment{Err: chunk.Error}
	}
	r := chunk.Response
	f := stream.Fragment{
		Thinking: r.Message.Thinking,
		Content:  r.Message.Content,
		Done:     r.Done,
	}
	if r.Done {
		f.Usage = r.Usage()
	}
	return f
}
