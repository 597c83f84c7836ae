package report

import (
	"fmt"
	"math"
	"strings"

	"nutrilens/api/internal/analyzer/types"
)

// Totals: суммарные макросы по всем позициям. Calories is the model's
// total_calories as returned, not a sum of items.
type Totals struct {
	Calories int
	Protein  int
	Carbs    int
	Fat      int
}

func Sum(res types.AnalysisResult) Totals {
	t := Totals{Calories: res.TotalCalories}
	for _, f := range res.Foods {
		t.Protein += f.Protein
		t.Carbs += f.Carbs
		t.Fat += f.Fat
	}
	return t
}

// ItemCalories sums per-item calories; it can disagree with TotalCalories.
func ItemCalories(res types.AnalysisResult) int {
	n := 0
	for _, f := range res.Foods {
		n += f.Calories
	}
	return n
}

// LowConfidence: items the model is less sure about than this get flagged in the breakdown.
const LowConfidence = 0.5

type Slice struct {
	Label   string
	Grams   int
	Percent float64
}

// MacroSplit is the donut chart as data: share of each macro by grams.
func MacroSplit(t Totals) []Slice {
	s := []Slice{
		{Label: "Protein", Grams: t.Protein},
		{Label: "Carbs", Grams: t.Carbs},
		{Label: "Fat", Grams: t.Fat},
	}
	sum := t.Protein + t.Carbs + t.Fat
	if sum == 0 {
		return s
	}
	for i := range s {
		s[i].Percent = float64(s[i].Grams) * 100 / float64(sum)
	}
	return s
}

// Gauge renders current vs target as a text bar of the given width.
func Gauge(current int, target float64, width int) string {
	if width <= 0 {
		width = 20
	}
	if target <= 0 {
		return fmt.Sprintf("%d kcal (no target)", current)
	}
	ratio := float64(current) / target
	filled := int(math.Round(math.Min(ratio, 1) * float64(width)))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	delta := float64(current) - target
	sign := "+"
	if delta < 0 {
		sign = "-"
	}
	return fmt.Sprintf("[%s] %d / %.0f kcal (%s%.0f)", bar, current, target, sign, math.Abs(delta))
}

// Summary is the plain-text results panel: metrics, split, gauge, breakdown, tip.
func Summary(res types.AnalysisResult, mealTarget float64) string {
	t := Sum(res)
	var b strings.Builder
	fmt.Fprintf(&b, "Calories: %d kcal | Protein: %dg | Carbs: %dg | Fat: %dg\n", t.Calories, t.Protein, t.Carbs, t.Fat)
	if n := ItemCalories(res); n != t.Calories && len(res.Foods) > 0 {
		fmt.Fprintf(&b, "(items add up to %d kcal)\n", n)
	}

	var parts []string
	for _, s := range MacroSplit(t) {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", s.Label, s.Percent))
	}
	b.WriteString("Macros: " + strings.Join(parts, " · ") + "\n")
	b.WriteString("Meal budget: " + Gauge(t.Calories, mealTarget, 16) + "\n")

	if len(res.Foods) > 0 {
		b.WriteString("\nItem breakdown:\n")
		for _, f := range res.Foods {
			fmt.Fprintf(&b, "• %s (%dg): %d kcal | P %dg | C %dg | F %dg",
				f.Name, f.WeightG, f.Calories, f.Protein, f.Carbs, f.Fat)
			if f.Confidence < LowConfidence {
				fmt.Fprintf(&b, " ⚠️ unsure (%.0f%%)", f.Confidence*100)
			}
			b.WriteByte('\n')
		}
	} else {
		b.WriteString("\nNo food items detected.\n")
	}
	if tip := strings.TrimSpace(res.HealthTip); tip != "" {
		b.WriteString("\n💡 Tip: " + tip + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
