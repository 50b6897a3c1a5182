package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("expected /messages, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Model != anthropicModel {
			t.Errorf("model = %s", req.Model)
		}
		if req.System != systemPrompt {
			t.Errorf("expected the capture system prompt, got %q", req.System)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 1 || req.Messages[0].Content[0].Text != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(messagesResponse{
			Content: []textBlock{{Type: "text", Text: `{"urgency":`}, {Type: "tool_use"}, {Type: "text", Text: `4}`}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", WithBaseURL(server.URL))
	result, err := client.GenerateText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"urgency":4}` {
		t.Errorf("got %q", result)
	}
}

func TestAnthropicGenerateTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"auth_error"}}`},
		{"error envelope", http.StatusOK, `{"type":"error","error":{"message":"overloaded","type":"overloaded_error"}}`},
		{"no text blocks", http.StatusOK, `{"content":[]}`},
		{"malformed json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			client := NewAnthropicClient("key", WithBaseURL(server.URL))
			if _, err := client.GenerateText(context.Background(), "hello"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestAnthropicOptions(t *testing.T) {
	client := NewAnthropicClient("test-key", WithModel("claude-sonnet-4-5"))
	if client.model != "claude-sonnet-4-5" || client.baseURL != anthropicBaseURL {
		t.Errorf("model=%q base=%q", client.model, client.baseURL)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
