package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nutrilens/api/internal/analyzer"
	"nutrilens/api/internal/analyzer/gemini"
	"nutrilens/api/internal/analyzer/ollama"
	"nutrilens/api/internal/analyzer/openai"
	"nutrilens/api/internal/config"
	"nutrilens/api/internal/handle"
	"nutrilens/api/internal/httpserver"
)

func main() {
	cfg := config.Load()

	engines := &analyzer.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel).WithBaseURL(cfg.OpenAIBaseURL),
	}
	if eng, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel); err != nil {
		log.Printf("ollama disabled: %v", err)
	} else {
		engines.Ollama = eng
	}

	// без движка сервер всё равно стартует: /analyze вернёт 500 с понятным detail
	gen, err := engines.GetEngine(cfg.Provider)
	if err != nil {
		log.Printf("llm provider: %v", err)
	}
	if !cfg.HasCredentials() {
		log.Printf("warning: no credentials for provider %q; analysis requests will fail", cfg.Provider)
	}

	delegate := analyzer.NewDelegate(gen,
		analyzer.WithMaxAttempts(cfg.AnalyzeMaxAttempts),
		analyzer.WithTimeout(cfg.AnalyzeTimeout),
		analyzer.WithDebug(cfg.Debug),
	)
	name, model := delegate.Engine()
	log.Printf("%s: engine=%s model=%s attempts=%d", cfg.ProjectName, name, model, cfg.AnalyzeMaxAttempts)

	h := handle.New(delegate, cfg.ProjectName,
		handle.WithMaxUpload(cfg.MaxUploadBytes),
		handle.WithDebug(cfg.Debug),
	)
	mux := http.NewServeMux()
	h.Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	if err := httpserver.Run(ctx, addr, httpserver.AccessLog(httpserver.Recover(httpserver.CORS(cfg.CORSAllowOrigins, mux)))); err != nil {
		log.Fatal(err)
	}
}
