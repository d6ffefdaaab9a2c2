package solveapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"screensolve/internal/imagedata"
)

// OllamaModel calls a local Ollama server's chat endpoint.
type OllamaModel struct {
	client *api.Client
	model  string
}

// NewOllamaModel connects to host, or to OLLAMA_HOST when host is empty.
func NewOllamaModel(host, model string) (*OllamaModel, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("ollama model required")
	}
	client, err := OllamaClient(host)
	if err != nil {
		return nil, err
	}
	return &OllamaModel{client: client, model: model}, nil
}

// OllamaClient connects to host, or to OLLAMA_HOST when host is empty. A host
// without a scheme is treated as http.
func OllamaClient(host string) (*api.Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return client, nil
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama host: %w", err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}

func (m *OllamaModel) Name() string { return "ollama:" + m.model }

func (m *OllamaModel) Configured() bool { return m.client != nil }

// Generate sends the screenshot as an image attachment and returns the reply.
func (m *OllamaModel) Generate(ctx context.Context, system string, img imagedata.Image) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: m.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Solve what is shown on this screen.", Images: []api.ImageData{img.Data}},
		},
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": temperature},
	}
	var reply strings.Builder
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return reply.String(), nil
}
