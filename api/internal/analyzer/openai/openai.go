package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"nutrilens/api/internal/analyzer"
	"nutrilens/api/internal/util"
)

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
}

func New(key, model string) *Engine {
	return &Engine{APIKey: strings.TrimSpace(key), Model: strings.TrimSpace(model)}
}

// WithBaseURL points the engine at an OpenAI-compatible server.
func (e *Engine) WithBaseURL(u string) *Engine {
	e.BaseURL = strings.TrimSpace(u)
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, req analyzer.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("openai: %w", analyzer.ErrMissingAPIKey)
	}
	schema, err := strictSchema(req.Schema)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	cfg := goopenai.DefaultConfig(e.APIKey)
	if e.BaseURL != "" {
		cfg.BaseURL = e.BaseURL
	}
	cl := goopenai.NewClientWithConfig(cfg)

	dataURL := util.MakeDataURL(req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
	resp, err := cl.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       e.Model,
		Temperature: 0,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: goopenai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   "analysis_result",
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: empty response")
	}
	return out, nil
}

// strictSchema rewrites the schema into the form strict mode accepts.
func strictSchema(doc string) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("bad schema: %w", err)
	}
	util.FixJSONSchemaStrict(m)
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return analyzer.MarkTransient(err)
		}
		return err
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && (reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500) {
		return analyzer.MarkTransient(err)
	}
	return err
}
