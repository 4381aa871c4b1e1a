package utils

import (
	"context"
	"encoding/json"
	"fmt"
)

// TextProvider identifies a text-generation provider
type TextProvider string

const (
	// OpenAI provider
	OpenAI TextProvider = "openai"
	// Anthropic provider
	Anthropic TextProvider = "anthropic"
	// Generic provider for custom OpenAI-compatible APIs
	Generic TextProvider = "generic"
)

// LLMClient is a unified client for the text-generation providers used by
// script, caption, and analysis actions
type LLMClient struct {
	httpClient *HTTPClient
	provider   TextProvider
	apiKey     string
	baseURL    string
}

// ChatMessage is one turn of a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral completion request
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// CompletionResponse is the provider-neutral result of a completion
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Tokens  int    `json:"tokens,omitempty"`
}

// NewLLMClient creates a text-generation client for the given provider.
// For the generic provider, baseURL points at an OpenAI-compatible API.
func NewLLMClient(provider TextProvider, apiKey, baseURL string) *LLMClient {
	client := &LLMClient{
		httpClient: NewHTTPClient(),
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
	if client.baseURL == "" {
		switch provider {
		case OpenAI:
			client.baseURL = "https://api.openai.com/v1"
		case Anthropic:
			client.baseURL = "https://api.anthropic.com/v1"
		}
	}
	return client
}

// Complete sends a completion request to the configured provider
func (c *LLMClient) Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	switch c.provider {
	case OpenAI, Generic:
		return c.completeOpenAI(ctx, request)
	case Anthropic:
		return c.completeAnthropic(ctx, request)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.provider)
	}
}

func (c *LLMClient) completeOpenAI(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	body := map[string]interface{}{
		"model":    request.Model,
		"messages": request.Messages,
	}
	if request.Temperature > 0 {
		body["temperature"] = request.Temperature
	}
	if request.MaxTokens > 0 {
		body["max_tokens"] = request.MaxTokens
	}

	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:    c.baseURL + "/chat/completions",
		Method: "POST",
		Body:   body,
		Auth:   map[string]interface{}{"token": c.apiKey},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion request returned status %d: %s", resp.StatusCode, string(resp.RawBody))
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(resp.RawBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	return &CompletionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Tokens:  parsed.Usage.TotalTokens,
	}, nil
}

func (c *LLMClient) completeAnthropic(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	// The messages API wants the system prompt out-of-band
	var system string
	messages := make([]ChatMessage, 0, len(request.Messages))
	for _, msg := range request.Messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		messages = append(messages, msg)
	}

	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	body := map[string]interface{}{
		"model":      request.Model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		body["system"] = system
	}
	if request.Temperature > 0 {
		body["temperature"] = request.Temperature
	}

	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:    c.baseURL + "/messages",
		Method: "POST",
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": "2023-06-01",
		},
		Body: body,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion request returned status %d: %s", resp.StatusCode, string(resp.RawBody))
	}

	var parsed struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(resp.RawBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}

	var content string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content: content,
		Model:   parsed.Model,
		Tokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}
