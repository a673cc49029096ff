package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// mockResponse represents a mock Ollama response configuration
type mockResponse struct {
	ThinkingChunks  []string // Thinking content chunks (if any)
	ContentChunks   []string // Response content chunks
	PromptEvalCount int
	EvalCount       int
	EvalDuration    int64
	Models          []ModelInfo
	Error           bool   // Return error response
	ErrorStatus     int    // HTTP status code for error
	ErrorMessage    string // Error message
	StreamError     string // Error line sent after the chunks
	Truncate        bool   // Omit the done line
	KeepAlives      int    // Empty-message lines sent before the chunks
}

// mockServer wraps an httptest server and records chat request bodies.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []map[string]interface{}
}

func (m *mockServer) lastRequest() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// newMockServer creates a new httptest server that mocks Ollama API responses
func newMockServer(response mockResponse) *mockServer {
	m := &mockServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			handleTagsMock(w, response)
		case "/api/chat":
			m.handleChat(w, r, response)
		default:
			http.NotFound(w, r)
		}
	}))
	return m
}

// handleTagsMock handles /api/tags endpoint
func handleTagsMock(w http.ResponseWriter, response mockResponse) {
	models := response.Models
	if models == nil {
		models = []ModelInfo{{Name: "qwen3:0.6b", Model: "qwen3:0.6b", Size: 1000000}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TagsResponse{Models: models})
}

// handleChat handles /api/chat endpoint
func (m *mockServer) handleChat(w http.ResponseWriter, r *http.Request, response mockResponse) {
	// Use a generic map to avoid ThinkValue unmarshaling issues in tests
	var reqMap map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&reqMap); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.requests = append(m.requests, reqMap)
	m.mu.Unlock()

	if response.Error {
		status := response.ErrorStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		http.Error(w, response.ErrorMessage, status)
		return
	}

	model, _ := reqMap["model"].(string)
	handleStreamingChatMock(w, model, response)
}

// handleStreamingChatMock writes NDJSON lines: thinking chunks, then content
// chunks, then the done line.
func handleStreamingChatMock(w http.ResponseWriter, model string, response mockResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")

	write := func(chunk ChatResponse) {
		data, _ := json.Marshal(chunk)
		w.Write(data)
		w.Write([]byte("\n"))
		flusher.Flush()
	}

	for i := 0; i < response.KeepAlives; i++ {
		write(ChatResponse{Model: model, Message: Message{Role: "assistant"}})
	}
	for _, thinkingChunk := range response.ThinkingChunks {
		write(ChatResponse{Model: model, Message: Message{Role: "assistant", Thinking: thinkingChunk}})
	}
	for _, contentChunk := range response.ContentChunks {
		write(ChatResponse{Model: model, Message: Message{Role: "assistant", Content: contentChunk}})
	}

	if response.StreamError != "" {
		write(ChatResponse{Error: response.StreamError})
		return
	}
	if response.Truncate {
		return
	}

	write(ChatResponse{
		Model:           model,
		Message:         Message{Role: "assistant"},
		Done:            true,
		DoneReason:      "stop",
		PromptEvalCount: response.PromptEvalCount,
		EvalCount:       response.EvalCount,
		EvalDuration:    response.EvalDuration,
	})
}
