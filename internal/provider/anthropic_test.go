package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicExecutorExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path: got %s, want /messages", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("api key header: got %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v == "" {
			t.Error("anthropic-version header missing")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.MaxTokens == 0 {
			t.Error("max_tokens not set")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Brand sentiment "},
				{"type": "text", "text": "is positive."}
			],
			"usage": {"input_tokens": 11, "output_tokens": 23}
		}`))
	}))
	defer srv.Close()

	exec := NewAnthropicExecutor(&AnthropicConfig{
		Model:   "claude-sonnet",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})

	result, err := exec.Execute(context.Background(), "How is our brand doing?")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// Text blocks are concatenated in order.
	if result.Content != "Brand sentiment is positive." {
		t.Errorf("content: got %q", result.Content)
	}
	if result.TokensIn != 11 || result.TokensOut != 23 {
		t.Errorf("tokens: got %d/%d, want 11/23", result.TokensIn, result.TokensOut)
	}
}

func TestAnthropicExecutorEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	}))
	defer srv.Close()

	exec := NewAnthropicExecutor(&AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := exec.Execute(context.Background(), "hello"); err == nil {
		t.Error("Execute returned no error for empty content")
	}
}

func TestRegistryGetAndIDs(t *testing.T) {
	r := NewRegistry()
	r.Register(NewOpenAIExecutor(&OpenAIConfig{}))
	r.Register(NewAnthropicExecutor(&AnthropicConfig{}))

	if _, err := r.Get("openai"); err != nil {
		t.Errorf("Get(openai) failed: %v", err)
	}
	if _, err := r.Get("mistral"); err == nil {
		t.Error("Get(mistral) returned no error")
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "anthropic" || ids[1] != "openai" {
		t.Errorf("IDs: got %v, want [anthropic openai]", ids)
	}
}
