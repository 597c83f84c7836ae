package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilens/api/internal/profile"
	"nutrilens/api/internal/report"
	"nutrilens/api/internal/store"
	"nutrilens/api/internal/util"
)

const helpText = `📸 Send a meal photo (or an image file) and I'll list the foods, their calories and macros.

Commands:
/profile <age> <weight kg> <height cm> <goal> <activity> — set your profile
   goal: maintain | cut | bulk
   activity: sedentary | light | moderate | active | athlete
/target — daily and per-meal calorie target
/today — calories logged in the last 24h
/history — last meals
/meal <id> — full report of a logged meal
/health — backend status`

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h, err := r.Backend.Health(ctx)
		if err != nil {
			r.sendError(cid, err)
			return
		}
		r.send(cid, fmt.Sprintf("✅ %s: %s", h.Service, h.Status))
	case "profile":
		r.handleProfile(cid, msg.CommandArguments())
	case "target":
		r.send(cid, targetText(r.profiles().Get(cid)))
	case "today":
		r.handleToday(cid)
	case "history":
		r.handleHistory(cid)
	case "meal":
		r.handleMeal(cid, strings.TrimSpace(msg.CommandArguments()))
	default:
		r.send(cid, "Unknown command. /help lists what I can do.")
	}
}

func (r *Router) profiles() *profile.Store {
	if r.Profiles == nil {
		r.Profiles = profile.NewStore(profile.Default())
	}
	return r.Profiles
}

func (r *Router) handleProfile(cid int64, args string) {
	f := strings.Fields(args)
	if len(f) == 0 {
		p := r.profiles().Get(cid)
		r.send(cid, fmt.Sprintf("Current profile: %d y, %.0f kg, %.0f cm, goal %s, activity %s\nUsage: /profile 30 80 180 cut moderate",
			p.Age, p.WeightKg, p.HeightCm, p.Goal, p.Activity))
		return
	}
	p, err := parseProfile(f)
	if err != nil {
		r.send(cid, "⚠️ "+err.Error())
		return
	}
	r.profiles().Set(cid, p)
	r.send(cid, "✅ Profile saved.\n"+targetText(p))
}

// parseProfile: age weight height [goal] [activity].
func parseProfile(f []string) (profile.Profile, error) {
	p := profile.Default()
	if len(f) < 3 {
		return p, fmt.Errorf("need at least age, weight and height")
	}
	age, err := strconv.Atoi(f[0])
	if err != nil {
		return p, fmt.Errorf("age %q is not a number", f[0])
	}
	w, err := strconv.ParseFloat(strings.ReplaceAll(f[1], ",", "."), 64)
	if err != nil {
		return p, fmt.Errorf("weight %q is not a number", f[1])
	}
	h, err := strconv.ParseFloat(strings.ReplaceAll(f[2], ",", "."), 64)
	if err != nil {
		return p, fmt.Errorf("height %q is not a number", f[2])
	}
	p.Age, p.WeightKg, p.HeightCm = age, w, h
	if len(f) > 3 {
		if p.Goal, err = profile.ParseGoal(f[3]); err != nil {
			return p, err
		}
	}
	if len(f) > 4 {
		if p.Activity, err = profile.ParseActivity(f[4]); err != nil {
			return p, err
		}
	}
	return p, p.Validate()
}

func targetText(p profile.Profile) string {
	return fmt.Sprintf("🎯 Daily target: %d kcal (TDEE %.0f)\nPer meal: %.0f kcal", p.TargetCalories(), p.TDEE(), p.MealTarget())
}

func (r *Router) handleToday(cid int64) {
	if r.Journal == nil {
		r.send(cid, "Meal journal is not enabled on this bot.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := r.Journal.CaloriesSince(ctx, cid, time.Now().Add(-24*time.Hour))
	if err != nil {
		r.sendError(cid, err)
		return
	}
	target := float64(r.profiles().Get(cid).TargetCalories())
	r.send(cid, "Last 24h: "+report.Gauge(n, target, 16))
}

func (r *Router) handleHistory(cid int64) {
	if r.Journal == nil {
		r.send(cid, "Meal journal is not enabled on this bot.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := r.Journal.Recent(ctx, cid, 10)
	if err != nil {
		r.sendError(cid, err)
		return
	}
	if len(list) == 0 {
		r.send(cid, "No meals logged yet.")
		return
	}
	var b strings.Builder
	b.WriteString("🍽 Recent meals:\n")
	for _, e := range list {
		names := make([]string, 0, len(e.Result.Foods))
		for _, f := range e.Result.Foods {
			names = append(names, f.Name)
		}
		fmt.Fprintf(&b, "%s — %d kcal: %s\n   /meal %s\n", e.CreatedAt.Format("Jan 2 15:04"), e.Result.TotalCalories, strings.Join(names, ", "), e.ID)
	}
	r.send(cid, strings.TrimRight(b.String(), "\n"))
}

func (r *Router) handleMeal(cid int64, id string) {
	if r.Journal == nil {
		r.send(cid, "Meal journal is not enabled on this bot.")
		return
	}
	if id == "" {
		r.send(cid, "Usage: /meal <id> (ids are listed by /history)")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e, err := r.Journal.Get(ctx, id)
	// чужие записи не показываем
	if errors.Is(err, store.ErrNotFound) || (err == nil && e.ChatID != cid) {
		r.send(cid, "No logged meal with id "+id+".")
		return
	}
	if err != nil {
		r.sendError(cid, err)
		return
	}
	summary := report.Summary(e.Result, r.profiles().Get(cid).MealTarget())
	r.send(cid, util.Truncate("🗓 "+e.CreatedAt.Format("Jan 2 15:04")+"\n"+summary, messageLimit))
}
