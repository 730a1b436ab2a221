package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// AnthropicExecutor calls the Anthropic Messages API.
type AnthropicExecutor struct {
	client   *resty.Client
	model    string
	endpoint string
}

// AnthropicConfig holds configuration for the Anthropic executor.
type AnthropicConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewAnthropicExecutor creates a new Anthropic executor.
func NewAnthropicExecutor(cfg *AnthropicConfig) *AnthropicExecutor {
	client := resty.New()
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("anthropic-version", "2023-06-01")
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(2 * time.Minute)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}

	return &AnthropicExecutor{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/messages",
	}
}

// ProviderID returns the provider identifier.
func (e *AnthropicExecutor) ProviderID() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Execute sends the prompt as a single-turn message.
func (e *AnthropicExecutor) Execute(ctx context.Context, prompt string) (*Result, error) {
	req := anthropicRequest{
		Model:     e.model,
		MaxTokens: 2048,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	var resp anthropicResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("anthropic returned status %d: %s", httpResp.StatusCode(), httpResp.String())
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s", resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned empty content")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Result{
		Content:   sb.String(),
		TokensIn:  resp.Usage.InputTokens,
		TokensOut: resp.Usage.OutputTokens,
	}, nil
}
