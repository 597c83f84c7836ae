package types

// FoodItem: одна найденная позиция на фото.
// BBox: [ymin, xmin, ymax, xmax] в нормализованной шкале 0..1000.
type FoodItem struct {
	Name       string  `json:"name"`
	BBox       []int   `json:"bbox"`
	WeightG    int     `json:"weight_g"`
	Calories   int     `json:"calories"`
	Protein    int     `json:"protein"`
	Carbs      int     `json:"carbs"`
	Fat        int     `json:"fat"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult: корневой объект ответа /analyze.
type AnalysisResult struct {
	Foods         []FoodItem `json:"foods"`
	TotalCalories int        `json:"total_calories"`
	HealthTip     string     `json:"health_tip"`
}

// ErrorResult is the wire form of a failed analysis.
type ErrorResult struct {
	Detail string `json:"detail"`
}
