package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIExecutor calls an OpenAI-compatible chat completions endpoint.
// Perplexity and several other vendors speak the same wire format, so this
// executor is reused for them with a different base URL and provider ID.
type OpenAIExecutor struct {
	client     *resty.Client
	providerID string
	model      string
	endpoint   string
}

// OpenAIConfig holds configuration for an OpenAI-compatible executor.
type OpenAIConfig struct {
	ProviderID string
	Model      string
	APIKey     string
	BaseURL    string
}

// NewOpenAIExecutor creates a new OpenAI-compatible executor.
// Parameters:
//   - cfg: provider configuration including model, API key, and base URL.
// Returns:
//   - *OpenAIExecutor: initialized client wrapper.
func NewOpenAIExecutor(cfg *OpenAIConfig) *OpenAIExecutor {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Per-call deadlines come from the runner's context; this is a backstop
	client.SetTimeout(2 * time.Minute)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	providerID := cfg.ProviderID
	if providerID == "" {
		providerID = "openai"
	}

	return &OpenAIExecutor{
		client:     client,
		providerID: providerID,
		model:      cfg.Model,
		endpoint:   baseURL + "/chat/completions",
	}
}

// ProviderID returns the provider identifier.
func (e *OpenAIExecutor) ProviderID() string {
	return e.providerID
}

// OpenAI-compatible chat completion request/response structures
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Execute sends the prompt as a single-turn chat completion.
func (e *OpenAIExecutor) Execute(ctx context.Context, prompt string) (*Result, error) {
	req := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	var resp chatResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", e.providerID, err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("%s returned status %d: %s", e.providerID, httpResp.StatusCode(), httpResp.String())
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s API error: %s", e.providerID, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", e.providerID)
	}

	return &Result{
		Content:   resp.Choices[0].Message.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}
