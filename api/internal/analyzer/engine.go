package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Request is everything an engine needs for one schema-constrained call.
type Request struct {
	Image    []byte
	MIMEType string
	Prompt   string
	Schema   string
}

// Generator is the external model boundary: image + prompt + schema in, JSON text out.
type Generator interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Engines holds the configured providers; nil entries are not configured.
type Engines struct {
	Gemini Generator
	OpenAI Generator
	Ollama Generator
}

func (e *Engines) GetEngine(name string) (Generator, error) {
	var g Generator
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "gemini"
	}
	switch name {
	case "gemini":
		g = e.Gemini
	case "gpt", "openai":
		g = e.OpenAI
	case "ollama":
		g = e.Ollama
	default:
		return nil, fmt.Errorf("unknown llm provider %q; use gemini | openai | ollama", name)
	}
	if g == nil {
		return nil, fmt.Errorf("llm provider %q is not configured", name)
	}
	return g, nil
}
