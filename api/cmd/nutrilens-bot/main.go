package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilens/api/internal/client"
	"nutrilens/api/internal/config"
	"nutrilens/api/internal/profile"
	"nutrilens/api/internal/store"
	"nutrilens/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	if cfg.TelegramBotToken == "" {
		log.Fatal("missing env TELEGRAM_BOT_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = cfg.Debug

	r := &telegram.Router{
		Bot:      bot,
		Backend:  client.New(cfg.APIURL),
		Profiles: profile.NewStore(profile.Default()),
		Engine:   cfg.Provider,
	}
	switch cfg.Provider {
	case "openai", "gpt":
		r.Model = cfg.OpenAIModel
	case "ollama":
		r.Model = cfg.OllamaModel
	default:
		r.Model = cfg.GeminiModel
	}

	// --- Meal journal (optional) ---
	db, dialect, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	switch {
	case errors.Is(err, store.ErrDisabled):
		log.Printf("meal journal disabled: set DATABASE_URL or SQLITE_PATH to enable")
	case err != nil:
		log.Fatalf("journal: %v", err)
	default:
		defer db.Close()
		repo := store.NewMealRepo(db, dialect)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatalf("journal: %v", err)
		}
		r.Journal = repo
		if cfg.DatabaseURL != "" {
			log.Printf("db connected: %s", safeDSNSummary(cfg.DatabaseURL))
		} else {
			log.Printf("db connected: sqlite %s", cfg.SQLitePath)
		}
		if cfg.JournalRetention > 0 {
			go purgeJournal(ctx, repo, cfg.JournalRetention, time.Hour)
		}
	}

	http.HandleFunc("/healthz", healthz(db))

	addr := "0.0.0.0:" + cfg.BotPort
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, addr, bot, r, webhookURL)
	} else {
		startPollingMode(ctx, addr, bot, r)
	}
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	// ListenForWebhook регистрирует обработчик на DefaultServeMux
	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			go r.HandleUpdate(upd)
		}
	}()

	srv := &http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("webhook listening on %s%s", addr, path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	go func() {
		log.Printf("health server listening on %s/healthz", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Printf("health server: %v", err)
		}
	}()

	runPolling(ctx, bot, r.HandleUpdate)
}

// ---------------- Polling loop -----------------

var retryAfterRe = regexp.MustCompile(`retry after\s+(\d+)`)

// retryDelayFromError: пауза перед следующим GetUpdates.
func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		if apiErr.RetryAfter > 0 {
			return time.Duration(apiErr.RetryAfter) * time.Second
		}
		return 3 * time.Second
	}
	// ошибки без структуры: только текст
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "too many requests") {
		if m := retryAfterRe.FindStringSubmatch(msg); m != nil {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}

func clampDelay(d time.Duration) time.Duration {
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)
	if d < baseDelay {
		return baseDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// runPolling: устойчивый long polling с backoff, без log.Fatal.
func runPolling(ctx context.Context, bot updatesGetter, handle func(tgbotapi.Update)) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err))
			log.Printf("polling error: %v; retry in %v", err, d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Journal retention -----------------

type purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// purgeJournal чистит журнал сразу и затем каждые every, пока жив ctx.
func purgeJournal(ctx context.Context, p purger, keep, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := p.PurgeOlderThan(ctx, keep)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Printf("journal purge: %v", err)
		case n > 0:
			log.Printf("journal purge: removed %d meals older than %v", n, keep)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// ---------------- Helpers -----------------

// shortHash keeps the bot token out of the webhook URL.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}

// safeDSNSummary: DSN для логов, без пароля и параметров.
func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: unparsable"
	}
	parts := []string{"host=" + u.Hostname()}
	if p := u.Port(); p != "" {
		parts = append(parts, "port="+p)
	}
	parts = append(parts, "db="+strings.TrimPrefix(u.Path, "/"), "user="+u.User.Username())
	return strings.Join(parts, " ")
}
