package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}

		resp := chatResponse{
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "world"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))

	result, err := client.GenerateText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
}

func TestMoonshotDefaults(t *testing.T) {
	client := NewMoonshotClient("test-key")
	if client.model != moonshotModel || client.baseURL != moonshotBaseURL {
		t.Errorf("unexpected defaults: model=%s base=%s", client.model, client.baseURL)
	}

	client = NewMoonshotClient("test-key", WithModel("kimi-latest"), WithModel(""))
	if client.model != "kimi-latest" {
		t.Errorf("empty WithModel should keep the previous model, got %s", client.model)
	}
}

func TestChatGenerateTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"api error status", http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"auth_error"}}`},
		{"error body with 200", http.StatusOK, `{"error":{"message":"quota","type":"rate_limit"}}`},
		{"empty choices", http.StatusOK, `{"choices":[]}`},
		{"malformed json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			client := NewMoonshotClient("key", WithBaseURL(server.URL))
			if _, err := client.GenerateText(context.Background(), "hello"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := New(context.Background(), ProviderOpenAI, "", ""); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := New(context.Background(), "bard", "key", ""); err == nil {
		t.Error("expected error for unknown provider")
	}
	g, err := New(context.Background(), ProviderMoonshot, "key", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := g.(*ChatClient); !ok {
		t.Errorf("moonshot should be a chat client, got %T", g)
	}
}
