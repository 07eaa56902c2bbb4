package usecase

import "github.com/kirillkom/menu-extractor/internal/core/domain"

// JSON Schemas (draft 2020-12 subset) for the three phase responses.
// Validation happens before typed decoding so a malformed model reply
// fails the phase instead of silently defaulting fields.

const pricePattern = `^\d+(\.\d{1,2})?$`

func structureSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"sections"},
		"properties": map[string]any{
			"sections": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name", "order"},
					"properties": map[string]any{
						"name":  map[string]any{"type": "string", "minLength": 1},
						"order": map[string]any{"type": "integer", "minimum": 0},
					},
				},
			},
			"venue_signals": map[string]any{"type": "string"},
		},
	}
}

func rawItemsSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []string{"name", "category", "section", "sizes"},
			"properties": map[string]any{
				"name":        map[string]any{"type": "string", "minLength": 1},
				"description": map[string]any{"type": "string"},
				"category":    map[string]any{"type": "string", "enum": domain.ItemCategories},
				"section":     map[string]any{"type": "string", "minLength": 1},
				"sizes": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []string{"size", "price"},
						"properties": map[string]any{
							"size":  map[string]any{"type": "string", "minLength": 1},
							"price": map[string]any{"type": "string", "pattern": pricePattern},
						},
					},
				},
			},
		},
	}
}

func enrichmentsSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []string{"name", "modifier_groups"},
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "minLength": 1},
				"modifier_groups": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"name", "options"},
						"properties": map[string]any{
							"name": map[string]any{"type": "string", "minLength": 1},
							"options": map[string]any{
								"type":     "array",
								"minItems": 1,
								"items": map[string]any{
									"type":     "object",
									"required": []string{"name"},
									"properties": map[string]any{
										"name":  map[string]any{"type": "string", "minLength": 1},
										"price": map[string]any{"type": "string", "pattern": pricePattern},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
