package solveapi

import (
	"context"
	"fmt"
	"strings"

	"screensolve/internal/config"
	"screensolve/internal/imagedata"
)

// SystemPrompt instructs the model to answer in the response schema.
const SystemPrompt = "You are a visual problem solver. The user sends a screenshot. " +
	"Identify any question, problem, or task visible on screen and provide the answer. " +
	"Respond ONLY with valid JSON: " +
	`{"answer": "<concise answer>", "confidence": <0.0-1.0>, "rationale": "<one sentence explanation>"}`

const temperature = 0.2

// Model generates a raw text completion for a screenshot.
type Model interface {
	Name() string
	// Configured reports whether the provider has what it needs to be called.
	Configured() bool
	Generate(ctx context.Context, system string, img imagedata.Image) (string, error)
}

// NewModel builds the provider selected by [server] provider.
func NewModel(ctx context.Context, cfg *config.Config) (Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Server.Provider)) {
	case config.ProviderOllama:
		return NewOllamaModel(cfg.Server.OllamaHost, cfg.Server.Model)
	case config.ProviderGemini:
		return NewGeminiModel(ctx, cfg.Server.GeminiAPIKey, cfg.Server.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Server.Provider)
	}
}
