package ai

import (
	"context"
	"fmt"
	"net/http"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"

	moonshotBaseURL = "https://api.moonshot.ai/v1"
	moonshotModel   = "kimi-k2.5"
)

// ChatClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Moonshot).
type ChatClient struct {
	endpoint
}

var _ Generator = (*ChatClient)(nil)

// NewOpenAIClient creates a client for the OpenAI API.
func NewOpenAIClient(apiKey string, opts ...Option) *ChatClient {
	return &ChatClient{newEndpoint("openai", apiKey, openAIBaseURL, openAIModel, opts)}
}

// NewMoonshotClient creates a client for the Moonshot API (Kimi).
func NewMoonshotClient(apiKey string, opts ...Option) *ChatClient {
	return &ChatClient{newEndpoint("moonshot", apiKey, moonshotBaseURL, moonshotModel, opts)}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// GenerateText sends the prompt with the capture system prompt and asks for
// a JSON object back.
func (c *ChatClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", header, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
