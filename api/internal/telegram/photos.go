package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/render"
	"nutrilens/api/internal/report"
	"nutrilens/api/internal/store"
	"nutrilens/api/internal/util"
)

const (
	captionLimit = 1024
	messageLimit = 3900
	previewDim   = 1280
)

func (r *Router) acceptPhoto(msg *tgbotapi.Message) {
	// самый большой размер идёт последним
	ph := msg.Photo[len(msg.Photo)-1]
	r.analyzeFile(msg.Chat.ID, ph.FileID, "photo.jpg", "image/jpeg")
}

func (r *Router) acceptDocument(msg *tgbotapi.Message) {
	d := msg.Document
	r.analyzeFile(msg.Chat.ID, d.FileID, d.FileName, d.MimeType)
}

func (r *Router) analyzeFile(cid int64, fileID, filename, mime string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	r.typing(cid, tgbotapi.ChatTyping)

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(cid, err)
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		r.sendError(cid, fmt.Errorf("download: %w", err))
		return
	}
	// the backend decides whether the type is acceptable
	mime = util.PickMIME(mime, filename, data)

	start := time.Now()
	res, err := r.Backend.Analyze(ctx, data, filename, mime)
	if err != nil {
		log.Printf("telegram: analyze chat=%d: %v", cid, err)
		r.sendError(cid, err)
		return
	}
	log.Printf("telegram: analyze chat=%d foods=%d total=%d took=%s", cid, len(res.Foods), res.TotalCalories, time.Since(start))

	summary := report.Summary(res, r.profiles().Get(cid).MealTarget())
	r.replyWithResult(cid, data, summary, res)

	if r.Journal != nil {
		if _, err := r.Journal.Save(ctx, store.MealEntry{
			ChatID: cid, Engine: r.Engine, Model: r.Model, Result: res,
		}); err != nil {
			log.Printf("telegram: journal save chat=%d: %v", cid, err)
		}
	}
}

// replyWithResult sends the annotated photo with the summary; text-only when the image can't be redrawn.
func (r *Router) replyWithResult(cid int64, img []byte, summary string, res types.AnalysisResult) {
	annotated, err := annotate(img, res.Foods)
	if err != nil {
		log.Printf("telegram: annotate chat=%d: %v", cid, err)
		r.send(cid, util.Truncate(summary, messageLimit))
		return
	}

	p := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "meal.jpg", Bytes: annotated})
	long := len([]rune(summary)) > captionLimit
	if long {
		p.Caption = fmt.Sprintf("🔥 %d kcal", res.TotalCalories)
	} else {
		p.Caption = summary
	}
	if _, err := r.Bot.Send(p); err != nil {
		log.Printf("telegram: send photo chat=%d: %v", cid, err)
		long = true
	}
	if long {
		r.send(cid, util.Truncate(summary, messageLimit))
	}
}

func annotate(data []byte, items []types.FoodItem) ([]byte, error) {
	img, _, err := render.Decode(data)
	if err != nil {
		return nil, err
	}
	out := render.Fit(render.Annotate(img, items), previewDim)
	var buf bytes.Buffer
	if err := render.Encode(&buf, out, "jpg", 90); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	if r.Download != nil {
		return r.Download(ctx, url)
	}
	return download(ctx, url)
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

var httpClient = &http.Client{Timeout: 60 * time.Second}
