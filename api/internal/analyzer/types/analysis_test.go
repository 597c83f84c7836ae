package types

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAnalysisResultSurvivesReencode(t *testing.T) {
	in := AnalysisResult{
		Foods: []FoodItem{
			{Name: "Rice", BBox: []int{100, 120, 480, 530}, WeightG: 150, Calories: 200, Protein: 4, Carbs: 45, Fat: 1, Confidence: 0.92},
			{Name: "Grilled chicken", BBox: []int{500, 500, 900, 950}, WeightG: 120, Calories: 250, Protein: 30, Fat: 12, Confidence: 0.4},
		},
		TotalCalories: 460,
		HealthTip:     "Add some greens.",
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out AnalysisResult
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("re-encoded result differs:\n got %+v\nwant %+v", out, in)
	}
}

func TestWireKeys(t *testing.T) {
	b, err := json.Marshal(AnalysisResult{Foods: []FoodItem{{Name: "Apple", BBox: []int{0, 0, 1000, 1000}}}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"foods", "total_calories", "health_tip"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q in %s", k, b)
		}
	}
	item := m["foods"].([]any)[0].(map[string]any)
	for _, k := range []string{"name", "bbox", "weight_g", "calories", "protein", "carbs", "fat", "confidence"} {
		if _, ok := item[k]; !ok {
			t.Errorf("missing food key %q in %s", k, b)
		}
	}
}
