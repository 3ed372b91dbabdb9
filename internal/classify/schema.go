package classify

// BuildTagsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is sent to the model as an output constraint and used
// locally to validate the reply.
func BuildTagsJSONSchema(allowedCategories []string) map[string]any {
	props := map[string]any{
		"category": map[string]any{"type": "string", "minLength": 1},
		"tags": map[string]any{
			"type":     "array",
			"maxItems": 8,
			"items":    map[string]any{"type": "string", "minLength": 1},
		},
		"summary":       map[string]any{"type": "string"},
		"language":      map[string]any{"type": "string", "minLength": 2, "maxLength": 5},
		"document_date": map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	// Constrain category if a taxonomy is provided.
	if len(allowedCategories) > 0 {
		props["category"] = map[string]any{
			"type": "string",
			"enum": allowedCategories,
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"category"},
	}
}
