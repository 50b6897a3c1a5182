package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultVisionModel = "gemini-1.5-flash"

	// Gemini reports no per-word confidence.
	geminiConfidence = 0.8

	transcribePrompt = "Transcribe all text in this image exactly as written, preserving line breaks. " +
		"Output only the transcription."
)

// GeminiEngine recognises text with a Gemini multimodal model.
type GeminiEngine struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ Engine = (*GeminiEngine)(nil)

// NewGeminiEngine creates a vision engine. An empty model uses
// gemini-1.5-flash.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultVisionModel
	}
	return &GeminiEngine{client: client, model: client.GenerativeModel(model)}, nil
}

// Close closes the client.
func (e *GeminiEngine) Close() error {
	return e.client.Close()
}

func (e *GeminiEngine) Recognize(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := e.model.GenerateContent(ctx, genai.ImageData(imageFormat(path), data), genai.Text(transcribePrompt))
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return Result{Text: sb.String(), Confidence: geminiConfidence}, nil
}

func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".webp":
		return "webp"
	case ".heic":
		return "heic"
	case ".gif":
		return "gif"
	}
	return "jpeg"
}
