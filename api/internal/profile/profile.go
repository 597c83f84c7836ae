package profile

import (
	"fmt"
	"strings"
	"sync"
)

type Goal string

const (
	GoalMaintain Goal = "maintain"
	GoalCut      Goal = "cut"
	GoalBulk     Goal = "bulk"
)

type Activity string

const (
	Sedentary Activity = "sedentary"
	Light     Activity = "light"
	Moderate  Activity = "moderate"
	Active    Activity = "active"
	Athlete   Activity = "athlete"
)

// TDEE multipliers per activity level.
var multipliers = map[Activity]float64{
	Sedentary: 1.2,
	Light:     1.375,
	Moderate:  1.55,
	Active:    1.725,
	Athlete:   1.9,
}

const (
	cutDelta  = -500
	bulkDelta = 400
)

// Profile: данные пользователя для расчёта дневной нормы калорий.
type Profile struct {
	Age      int
	WeightKg float64
	HeightCm float64
	Goal     Goal
	Activity Activity
}

func Default() Profile {
	return Profile{Age: 25, WeightKg: 70, HeightCm: 175, Goal: GoalMaintain, Activity: Sedentary}
}

func (p Profile) Validate() error {
	switch {
	case p.Age < 10 || p.Age > 100:
		return fmt.Errorf("age must be between 10 and 100")
	case p.WeightKg < 30 || p.WeightKg > 200:
		return fmt.Errorf("weight must be between 30 and 200 kg")
	case p.HeightCm < 100 || p.HeightCm > 250:
		return fmt.Errorf("height must be between 100 and 250 cm")
	}
	if _, ok := multipliers[p.Activity]; !ok {
		return fmt.Errorf("unknown activity level %q", p.Activity)
	}
	switch p.Goal {
	case GoalMaintain, GoalCut, GoalBulk:
	default:
		return fmt.Errorf("unknown goal %q", p.Goal)
	}
	return nil
}

// BMR: Mifflin-St Jeor, male constant.
func (p Profile) BMR() float64 {
	return 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age) + 5
}

func (p Profile) TDEE() float64 {
	m, ok := multipliers[p.Activity]
	if !ok {
		m = multipliers[Sedentary]
	}
	return p.BMR() * m
}

// TargetCalories is the daily target adjusted for the goal, truncated to kcal.
func (p Profile) TargetCalories() int {
	t := p.TDEE()
	switch p.Goal {
	case GoalCut:
		t += cutDelta
	case GoalBulk:
		t += bulkDelta
	}
	return int(t)
}

// MealTarget is a third of the daily target: the budget for one meal.
func (p Profile) MealTarget() float64 {
	return float64(p.TargetCalories()) / 3
}

func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maintain", "keep":
		return GoalMaintain, nil
	case "cut", "lose":
		return GoalCut, nil
	case "bulk", "gain":
		return GoalBulk, nil
	}
	return "", fmt.Errorf("unknown goal %q; use maintain | cut | bulk", s)
}

func ParseActivity(s string) (Activity, error) {
	a := Activity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := multipliers[a]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown activity %q; use sedentary | light | moderate | active | athlete", s)
}

// Store keeps one profile per chat; chats without one get the default.
type Store struct {
	def Profile
	m   sync.Map // chatID -> Profile
}

func NewStore(def Profile) *Store {
	return &Store{def: def}
}

func (s *Store) Get(chatID int64) Profile {
	if v, ok := s.m.Load(chatID); ok {
		return v.(Profile)
	}
	return s.def
}

func (s *Store) Set(chatID int64, p Profile) {
	s.m.Store(chatID, p)
}
