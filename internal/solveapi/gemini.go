package solveapi

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"screensolve/internal/imagedata"
)

// GeminiModel calls the Gemini API through the official genai client.
type GeminiModel struct {
	cli    *genai.Client
	model  string
	hasKey bool
}

// NewGeminiModel constructs a client. An empty apiKey lets the SDK fall back
// to GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("gemini model required")
	}
	apiKey = strings.TrimSpace(apiKey)
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiModel{cli: cli, model: model, hasKey: apiKey != ""}, nil
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }

func (g *GeminiModel) Configured() bool { return g.hasKey }

// Generate asks for an application/json response for the screenshot.
func (g *GeminiModel) Generate(ctx context.Context, system string, img imagedata.Image) (string, error) {
	temp := float32(temperature)
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: img.MediaType, Data: img.Data}},
			{Text: "Solve what is shown on this screen."},
		},
	}}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		ResponseMIMEType:  "application/json",
		Temperature:       &temp,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrInvalidJSON
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
