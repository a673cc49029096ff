package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient(Config{})
		if c.baseURL != DefaultLocalBaseURL {
			t.Errorf("expected baseURL %s, got %s", DefaultLocalBaseURL, c.baseURL)
		}
		if c.apiKey != "" {
			t.Errorf("expected empty apiKey, got %s", c.apiKey)
		}
		if c.httpClient.Timeout != DefaultTimeout {
			t.Errorf("expected timeout %v, got %v", DefaultTimeout, c.httpClient.Timeout)
		}
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://custom:8080/"})
		if c.baseURL != "http://custom:8080" {
			t.Errorf("expected trailing slash removed, got %s", c.baseURL)
		}
	})

	t.Run("scheme added to bare host", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "0.0.0.0:11434"})
		if c.baseURL != "http://0.0.0.0:11434" {
			t.Errorf("expected http scheme, got %s", c.baseURL)
		}
	})

	t.Run("api key switches to cloud url", func(t *testing.T) {
		c := NewClient(Config{APIKey: "test-key"})
		if c.baseURL != DefaultCloudBaseURL {
			t.Errorf("expected cloud baseURL %s, got %s", DefaultCloudBaseURL, c.baseURL)
		}
	})

	t.Run("custom host with api key", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://custom:8080", APIKey: "test-key"})
		// Custom host should not be overwritten
		if c.baseURL != "http://custom:8080" {
			t.Errorf("expected custom baseURL, got %s", c.baseURL)
		}
	})
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://test:1234")
	t.Setenv("OLLAMA_API_KEY", "k")

	c := NewClientFromEnv()
	if c.BaseURL() != "http://test:1234" {
		t.Errorf("expected baseURL http://test:1234, got %s", c.BaseURL())
	}
	if c.apiKey != "k" {
		t.Errorf("expected apiKey k, got %s", c.apiKey)
	}
}

func TestClient_ListModels(t *testing.T) {
	t.Run("successful response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				t.Errorf("expected path /api/tags, got %s", r.URL.Path)
			}
			if r.Method != "GET" {
				t.Errorf("expected GET method, got %s", r.Method)
			}

			resp := TagsResponse{
				Models: []ModelInfo{
					{Name: "qwen3:0.6b", Model: "qwen3:0.6b", Size: 1234567890},
					{Name: "llama3:8b", Size: 9876543210},
				},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		c := NewClient(Config{BaseURL: server.URL})
		models, err := c.ListModels(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(models) != 2 {
			t.Fatalf("expected 2 models, got %d", len(models))
		}
		if models[0].ID() != "qwen3:0.6b" {
			t.Errorf("expected first model qwen3:0.6b, got %s", models[0].ID())
		}
		if models[1].ID() != "llama3:8b" {
			t.Errorf("expected name fallback llama3:8b, got %s", models[1].ID())
		}
	})

	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("internal error"))
		}))
		defer server.Close()

		c := NewClient(Config{BaseURL: server.URL})
		_, err := c.ListModels(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Body != "internal error" {
			t.Errorf("unexpected api error: %+v", apiErr)
		}
	})

	t.Run("with api key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer test-key" {
				t.Errorf("expected Bearer test-key, got %s", auth)
			}
			json.NewEncoder(w).Encode(TagsResponse{Models: []ModelInfo{}})
		}))
		defer server.Close()

		c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
		_, err := c.ListModels(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestClient_Directory(t *testing.T) {
	server := newMockServer(mockResponse{Models: []ModelInfo{
		{Name: "qwen3:0.6b", Model: "qwen3:0.6b", Size: 522, Digest: "abc"},
		{Name: "deepseek-r1:latest", Size: 4700},
	}})
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	dir, err := c.Directory(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dir) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(dir))
	}
	if dir["qwen3:0.6b"].Digest != "abc" {
		t.Errorf("expected digest abc, got %q", dir["qwen3:0.6b"].Digest)
	}
	if dir["deepseek-r1:latest"].Size != 4700 {
		t.Errorf("expected size 4700, got %d", dir["deepseek-r1:latest"].Size)
	}
}

func TestClient_IsAvailable(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		server := newMockServer(mockResponse{})
		defer server.Close()

		c := NewClient(Config{BaseURL: server.URL})
		if err := c.IsAvailable(context.Background()); err != nil {
			t.Errorf("expected backend to be available, got %v", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		c := NewClient(Config{BaseURL: url})
		if err := c.IsAvailable(context.Background()); err == nil {
			t.Error("expected an error for a closed server")
		}
	})

	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient(Config{BaseURL: server.URL})
		var apiErr *APIError
		if err := c.IsAvailable(context.Background()); !errors.As(err, &apiErr) {
			t.Errorf("expected *APIError, got %v", err)
		}
	})
}

func TestClient_ChatStream_NoModel(t *testing.T) {
	c := NewClient(Config{})

	_, err := c.ChatStream(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "test"}}})
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}

func TestThinkValue_Marshal(t *testing.T) {
	b, _ := json.Marshal(ChatRequest{Model: "m", Think: NewThinkValueBool(true)})
	var got map[string]interface{}
	json.Unmarshal(b, &got)
	if got["think"] != true {
		t.Errorf("expected think=true, got %v", got["think"])
	}

	b, _ = json.Marshal(ChatRequest{Model: "m", Think: NewThinkValueString("high")})
	got = nil
	json.Unmarshal(b, &got)
	if got["think"] != "high" {
		t.Errorf("expected think=high, got %v", got["think"])
	}

	b, _ = json.Marshal(ChatRequest{Model: "m"})
	got = nil
	json.Unmarshal(b, &got)
	if _, ok := got["think"]; ok {
		t.Error("expected think to be omitted")
	}
}
