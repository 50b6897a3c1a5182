package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// endpoint holds what every HTTP-backed Generator needs.
type endpoint struct {
	name       string
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// Option customises an HTTP-backed client.
type Option func(*endpoint)

// WithModel overrides the default model. An empty model keeps the default.
func WithModel(model string) Option {
	return func(e *endpoint) {
		if model != "" {
			e.model = model
		}
	}
}

// WithBaseURL points the client at another compatible endpoint.
func WithBaseURL(url string) Option {
	return func(e *endpoint) {
		if url != "" {
			e.baseURL = url
		}
	}
}

func newEndpoint(name, apiKey, baseURL, model string, opts []Option) endpoint {
	e := endpoint{
		name:       name,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
	for _, o := range opts {
		o(&e)
	}
	return e
}

// apiError is the error envelope shared by the chat and messages APIs.
type apiError struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// post sends in as JSON to path and decodes the reply into out. Non-200
// replies and error envelopes become errors naming the provider.
func (e endpoint) post(ctx context.Context, path string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API error (status %d): %s", e.name, resp.StatusCode, string(data))
	}

	var envelope apiError
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
		return fmt.Errorf("%s API error: %s", e.name, envelope.Error.Message)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Close is a no-op for HTTP clients.
func (e endpoint) Close() error { return nil }
