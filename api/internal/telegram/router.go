package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/client"
	"nutrilens/api/internal/profile"
	"nutrilens/api/internal/store"
)

// Bot: то, что роутер использует из *tgbotapi.BotAPI.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Backend is the analysis API; *client.Client satisfies it.
type Backend interface {
	Analyze(ctx context.Context, img []byte, filename, mime string) (types.AnalysisResult, error)
	Health(ctx context.Context) (client.Health, error)
}

// Journal is optional; a nil Journal disables /history, /meal and /today.
type Journal interface {
	Save(ctx context.Context, e store.MealEntry) (string, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]store.MealEntry, error)
	Get(ctx context.Context, id string) (store.MealEntry, error)
	CaloriesSince(ctx context.Context, chatID int64, since time.Time) (int, error)
}

type Router struct {
	Bot      Bot
	Backend  Backend
	Profiles *profile.Store
	Journal  Journal

	// Engine label stored with journal entries.
	Engine string
	Model  string

	// Download fetches a Telegram file URL; nil means plain HTTP GET.
	Download func(ctx context.Context, url string) ([]byte, error)
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}
	switch {
	case len(msg.Photo) > 0:
		r.acceptPhoto(msg)
	case msg.Document != nil:
		r.acceptDocument(msg)
	case msg.Text != "":
		r.send(msg.Chat.ID, "Send a photo of your meal and I'll estimate its calories and macros. /help lists commands.")
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (r *Router) sendError(chatID int64, err error) {
	r.send(chatID, "❌ "+client.Describe(err))
}

// typing shows a chat action while the analysis runs.
func (r *Router) typing(chatID int64, action string) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, action))
}
