package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	ProjectName string
	Debug       bool

	// LLM
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OllamaURL     string
	OllamaModel   string

	AnalyzeMaxAttempts int
	AnalyzeTimeout     time.Duration
	MaxUploadBytes     int64
	CORSAllowOrigins   []string

	// Frontend
	TelegramBotToken string
	WebhookURL       string
	APIURL           string
	BotPort          string

	// Meal journal; both empty disables it.
	DatabaseURL string
	SQLitePath  string
	// JournalRetention: записи старше удаляются ботом; 0 хранит всё.
	JournalRetention time.Duration
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", k, v, def)
		return def
	}
	return n
}

func getBool(k string, def bool) bool {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, using %v", k, v, def)
		return def
	}
	return b
}

func getDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	log.Printf("config: %s=%q is not a duration, using %v", k, v, def)
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads .env files (if present) and then the environment; real
// environment variables win over .env values. Missing API keys are not fatal:
// analysis requests report a configuration error instead.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Printf("config: %s: %v", f, err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		ProjectName: getEnv("PROJECT_NAME", "NutriLens"),
		Debug:       getBool("DEBUG", false),

		Provider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llava"),

		AnalyzeMaxAttempts: getInt("ANALYZE_MAX_ATTEMPTS", 1),
		AnalyzeTimeout:     getDuration("ANALYZE_TIMEOUT", 0),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
		CORSAllowOrigins:   splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		APIURL:           getEnv("API_URL", "http://127.0.0.1:8000"),
		BotPort:          getEnv("BOT_PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", ""),

		JournalRetention: getDuration("JOURNAL_RETENTION", 0),
	}
	if cfg.AnalyzeMaxAttempts < 1 {
		cfg.AnalyzeMaxAttempts = 1
	}
	return cfg
}

// HasCredentials reports whether the selected provider can be called at all.
func (c *Config) HasCredentials() bool {
	switch c.Provider {
	case "openai", "gpt":
		return c.OpenAIAPIKey != ""
	case "ollama":
		return c.OllamaURL != ""
	default:
		return c.GeminiAPIKey != ""
	}
}
