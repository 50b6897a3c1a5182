package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	anthropicModel     = "claude-3-5-haiku-latest"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// AnthropicClient uses the Anthropic messages API.
type AnthropicClient struct {
	endpoint
}

var _ Generator = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey string, opts ...Option) *AnthropicClient {
	return &AnthropicClient{newEndpoint("anthropic", apiKey, anthropicBaseURL, anthropicModel, opts)}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []messageTurn `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type messageTurn struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []textBlock `json:"content"`
}

// GenerateText returns the concatenated text blocks of the reply.
func (c *AnthropicClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := messagesRequest{
		Model:  c.model,
		System: systemPrompt,
		Messages: []messageTurn{
			{Role: "user", Content: []textBlock{{Type: "text", Text: prompt}}},
		},
		MaxTokens: anthropicMaxTokens,
	}
	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var resp messagesResponse
	if err := c.post(ctx, "/messages", header, req, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content returned")
	}
	return sb.String(), nil
}
