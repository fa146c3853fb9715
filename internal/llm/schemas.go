package llm

// JSON schemas for structured outputs. Strict mode requires every
// property listed in "required" and additionalProperties false.

var chooseRuleSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"no_match":  map[string]any{"type": "boolean"},
		"rule_name": map[string]any{"type": "string"},
		"reason":    map[string]any{"type": "string"},
		"args": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"value": map[string]any{"type": "string"},
				},
				"required":             []string{"name", "value"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"no_match", "rule_name", "reason", "args"},
	"additionalProperties": false,
}

var coldEmailSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_cold_email": map[string]any{"type": "boolean"},
		"reason":        map[string]any{"type": "string"},
	},
	"required":             []string{"is_cold_email", "reason"},
	"additionalProperties": false,
}

var categorizeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"senders": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"address":  map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
				},
				"required":             []string{"address", "category"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"senders"},
	"additionalProperties": false,
}

var extractEventSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"has_event":        map[string]any{"type": "boolean"},
		"summary":          map[string]any{"type": "string"},
		"description":      map[string]any{"type": "string"},
		"location":         map[string]any{"type": "string"},
		"start_time":       map[string]any{"type": "string"},
		"duration_minutes": map[string]any{"type": "integer"},
		"attendees": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{
		"has_event", "summary", "description", "location",
		"start_time", "duration_minutes", "attendees",
	},
	"additionalProperties": false,
}
