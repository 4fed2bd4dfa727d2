package synthesis

import "github.com/quillreads/voicenotes/pkg/llm"

// ArtifactSchema is the strict JSON schema every model completion must
// satisfy: all five collections present, each with its item shape.
func ArtifactSchema() *llm.Schema {
	titled := func() map[string]any {
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"title", "content"},
			"properties": map[string]any{
				"title":   map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
				"source":  map[string]any{"type": "string"},
			},
		}
	}

	return &llm.Schema{
		Name: "reading_artifacts",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required": []string{
				"insights", "openQuestions", "quotes",
				"followUpQuestions", "contextExpansions",
			},
			"properties": map[string]any{
				"insights": map[string]any{
					"type":  "array",
					"items": titled(),
				},
				"openQuestions": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"quotes": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []string{"text"},
						"properties": map[string]any{
							"text": map[string]any{"type": "string"},
						},
					},
				},
				"followUpQuestions": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"contextExpansions": map[string]any{
					"type":  "array",
					"items": titled(),
				},
			},
		},
	}
}
