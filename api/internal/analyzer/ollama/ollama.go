package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"nutrilens/api/internal/analyzer"
)

// Engine wraps the Ollama API client for a local vision model.
type Engine struct {
	Model  string
	client *api.Client
}

// New creates an engine for the server at rawURL (path such as /api/chat is ignored).
func New(rawURL, model string) (*Engine, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host required", rawURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Engine{
		Model:  strings.TrimSpace(model),
		client: api.NewClient(base, http.DefaultClient),
	}, nil
}

func (e *Engine) Name() string     { return "ollama" }
func (e *Engine) GetModel() string { return e.Model }

// Generate sends the schema as the structured-output format of the chat call.
func (e *Engine) Generate(ctx context.Context, req analyzer.Request) (string, error) {
	streamFalse := false
	chat := &api.ChatRequest{
		Model: e.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(req.Image)},
			},
		},
		Stream:  &streamFalse,
		Format:  json.RawMessage(req.Schema),
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err := e.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500) {
			return "", analyzer.MarkTransient(fmt.Errorf("ollama chat error: %w", err))
		}
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content.String(), nil
}
