package analyzer

// Prompt is sent with every image; it never varies per request.
const Prompt = `Analyze the attached food image.
1. Identify all food items.
2. Draw Bounding Boxes for each item using normalized coordinates [ymin, xmin, ymax, xmax] (0-1000 scale).
3. Estimate Weight in grams. Assume standard dinnerware sizes unless a reference object is visible.
4. Calculate Macros (Calories, Protein, Carbs, Fat) for every item, the total calories of the meal and one short health tip.

CRITICAL: Output ONLY a valid JSON object matching the provided schema.`

// Schema: analysis.schema.json, форма AnalysisResult.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "AnalysisResult",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "foods": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "bbox": {
            "type": "array",
            "description": "[ymin, xmin, ymax, xmax] normalized to 0-1000",
            "items": {"type": "integer"},
            "minItems": 4,
            "maxItems": 4
          },
          "weight_g": {"type": "integer", "minimum": 0},
          "calories": {"type": "integer", "minimum": 0},
          "protein": {"type": "integer", "minimum": 0},
          "carbs": {"type": "integer", "minimum": 0},
          "fat": {"type": "integer", "minimum": 0},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["name", "bbox", "weight_g", "calories", "protein", "carbs", "fat", "confidence"]
      }
    },
    "total_calories": {"type": "integer", "minimum": 0},
    "health_tip": {"type": "string"}
  },
  "required": ["foods", "total_calories", "health_tip"]
}`
