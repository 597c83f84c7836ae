package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/client"
	"nutrilens/api/internal/profile"
	"nutrilens/api/internal/store"
)

type fakeBot struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (b *fakeBot) texts() []string {
	var out []string
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeBackend struct {
	res   types.AnalysisResult
	err   error
	calls int
	mime  string
}

func (f *fakeBackend) Analyze(_ context.Context, _ []byte, _ string, mime string) (types.AnalysisResult, error) {
	f.calls++
	f.mime = mime
	return f.res, f.err
}

func (f *fakeBackend) Health(context.Context) (client.Health, error) {
	return client.Health{Status: "healthy", Service: "NutriLens"}, nil
}

type fakeJournal struct {
	saved []store.MealEntry
}

func (j *fakeJournal) Save(_ context.Context, e store.MealEntry) (string, error) {
	e.ID = fmt.Sprintf("m%d", len(j.saved)+1)
	j.saved = append(j.saved, e)
	return e.ID, nil
}

func (j *fakeJournal) Get(_ context.Context, id string) (store.MealEntry, error) {
	for _, e := range j.saved {
		if e.ID == id {
			return e, nil
		}
	}
	return store.MealEntry{}, store.ErrNotFound
}

func (j *fakeJournal) Recent(context.Context, int64, int) ([]store.MealEntry, error) {
	return j.saved, nil
}

func (j *fakeJournal) CaloriesSince(context.Context, int64, time.Time) (int, error) {
	n := 0
	for _, e := range j.saved {
		n += e.Result.TotalCalories
	}
	return n, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func command(cid int64, text string) tgbotapi.Update {
	n := strings.IndexByte(text, ' ')
	if n < 0 {
		n = len(text)
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: cid},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}}
}

func newRouter(t *testing.T, bot *fakeBot, be *fakeBackend, j Journal) *Router {
	data := pngBytes(t)
	return &Router{
		Bot:      bot,
		Backend:  be,
		Profiles: profile.NewStore(profile.Default()),
		Journal:  j,
		Engine:   "gemini",
		Model:    "gemini-1.5-flash",
		Download: func(context.Context, string) ([]byte, error) { return data, nil },
	}
}

var mealResult = types.AnalysisResult{
	Foods: []types.FoodItem{
		{Name: "Rice", BBox: []int{100, 100, 500, 500}, WeightG: 150, Calories: 200, Protein: 4, Carbs: 45, Fat: 1, Confidence: 0.9},
		{Name: "Chicken", BBox: []int{500, 500, 900, 900}, WeightG: 120, Calories: 250, Protein: 30, Carbs: 0, Fat: 12, Confidence: 0.85},
	},
	TotalCalories: 450,
	HealthTip:     "Add some vegetables for fiber.",
}

func TestPhotoIsAnalyzedAndLogged(t *testing.T) {
	bot := &fakeBot{}
	be := &fakeBackend{res: mealResult}
	j := &fakeJournal{}
	r := newRouter(t, bot, be, j)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}})

	if be.calls != 1 {
		t.Fatalf("backend calls = %d", be.calls)
	}
	if be.mime != "image/jpeg" {
		t.Errorf("mime = %q", be.mime)
	}
	var photo *tgbotapi.PhotoConfig
	for _, c := range bot.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			photo = &p
		}
	}
	if photo == nil {
		t.Fatalf("no photo sent; messages: %v", bot.texts())
	}
	if !strings.Contains(photo.Caption, "Calories: 450 kcal") || !strings.Contains(photo.Caption, "Add some vegetables") {
		t.Errorf("caption = %q", photo.Caption)
	}
	if len(bot.requests) == 0 {
		t.Error("no chat action sent")
	}
	if len(j.saved) != 1 || j.saved[0].ChatID != 7 || j.saved[0].Engine != "gemini" {
		t.Errorf("journal = %+v", j.saved)
	}
}

func TestBackendErrorIsReported(t *testing.T) {
	bot := &fakeBot{}
	be := &fakeBackend{err: &client.StatusError{Code: 400, Detail: `Invalid file type "image/gif". Only JPEG, PNG, or WebP allowed.`}}
	j := &fakeJournal{}
	r := newRouter(t, bot, be, j)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		Document: &tgbotapi.Document{FileID: "doc", FileName: "anim.gif", MimeType: "image/gif"},
	}})

	texts := bot.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Error 400: Invalid file type") {
		t.Fatalf("messages = %v", texts)
	}
	if be.mime != "image/gif" {
		t.Errorf("declared type not forwarded: %q", be.mime)
	}
	if len(j.saved) != 0 {
		t.Error("failed analysis must not be logged")
	}
}

func TestTransportErrorMessage(t *testing.T) {
	bot := &fakeBot{}
	be := &fakeBackend{err: &client.TransportError{Err: errors.New("dial tcp: refused")}}
	r := newRouter(t, bot, be, nil)

	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	}})
	texts := bot.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Connection Error. Is the backend running?") {
		t.Fatalf("messages = %v", texts)
	}
}

func TestProfileCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(t, bot, &fakeBackend{}, nil)

	r.HandleUpdate(command(3, "/profile 30 80 180 cut moderate"))
	p := r.Profiles.Get(3)
	if p.Age != 30 || p.WeightKg != 80 || p.HeightCm != 180 || p.Goal != profile.GoalCut || p.Activity != profile.Moderate {
		t.Fatalf("profile = %+v", p)
	}
	if texts := bot.texts(); len(texts) != 1 || !strings.Contains(texts[0], "Profile saved") {
		t.Fatalf("messages = %v", texts)
	}

	r.HandleUpdate(command(3, "/profile 5 80 180"))
	if texts := bot.texts(); !strings.Contains(texts[len(texts)-1], "age must be between") {
		t.Errorf("want validation error, got %q", texts[len(texts)-1])
	}
	if r.Profiles.Get(3).Age != 30 {
		t.Error("invalid profile must not be stored")
	}
}

func TestTargetUsesDefaultProfile(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(t, bot, &fakeBackend{}, nil)
	r.HandleUpdate(command(9, "/target"))
	texts := bot.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Daily target: 2008 kcal") {
		t.Fatalf("messages = %v", texts)
	}
}

func TestHistoryWithoutJournal(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(t, bot, &fakeBackend{}, nil)
	r.HandleUpdate(command(1, "/history"))
	if texts := bot.texts(); len(texts) != 1 || !strings.Contains(texts[0], "not enabled") {
		t.Fatalf("messages = %v", texts)
	}
}

func TestHistoryAndToday(t *testing.T) {
	bot := &fakeBot{}
	j := &fakeJournal{saved: []store.MealEntry{{ID: "m1", ChatID: 1, CreatedAt: time.Now(), Result: mealResult}}}
	r := newRouter(t, bot, &fakeBackend{}, j)

	r.HandleUpdate(command(1, "/history"))
	r.HandleUpdate(command(1, "/today"))
	texts := bot.texts()
	if len(texts) != 2 {
		t.Fatalf("messages = %v", texts)
	}
	if !strings.Contains(texts[0], "450 kcal: Rice, Chicken") || !strings.Contains(texts[0], "/meal m1") {
		t.Errorf("history = %q", texts[0])
	}
	if !strings.Contains(texts[1], "450 / 2008 kcal") {
		t.Errorf("today = %q", texts[1])
	}
}

func TestMealCommand(t *testing.T) {
	bot := &fakeBot{}
	j := &fakeJournal{saved: []store.MealEntry{
		{ID: "m1", ChatID: 1, CreatedAt: time.Now(), Result: mealResult},
		{ID: "m2", ChatID: 2, CreatedAt: time.Now(), Result: mealResult},
	}}
	r := newRouter(t, bot, &fakeBackend{}, j)

	r.HandleUpdate(command(1, "/meal m1"))
	r.HandleUpdate(command(1, "/meal m2"))
	r.HandleUpdate(command(1, "/meal nope"))
	r.HandleUpdate(command(1, "/meal"))
	texts := bot.texts()
	if len(texts) != 4 {
		t.Fatalf("messages = %v", texts)
	}
	if !strings.Contains(texts[0], "Calories: 450 kcal") || !strings.Contains(texts[0], "Rice") {
		t.Errorf("meal = %q", texts[0])
	}
	if !strings.Contains(texts[1], "No logged meal") {
		t.Errorf("another chat's meal shown: %q", texts[1])
	}
	if !strings.Contains(texts[2], "No logged meal with id nope") {
		t.Errorf("missing = %q", texts[2])
	}
	if !strings.HasPrefix(texts[3], "Usage: /meal") {
		t.Errorf("usage = %q", texts[3])
	}
}

func TestHealthCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(t, bot, &fakeBackend{}, nil)
	r.HandleUpdate(command(1, "/health"))
	if texts := bot.texts(); len(texts) != 1 || texts[0] != "✅ NutriLens: healthy" {
		t.Fatalf("messages = %v", texts)
	}
}
