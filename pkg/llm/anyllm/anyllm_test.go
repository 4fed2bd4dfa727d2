package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/quillreads/voicenotes/pkg/llm"
)

func TestSplitModelID(t *testing.T) {
	tests := []struct {
		id       string
		provider string
		model    string
	}{
		{"anthropic/claude-sonnet-4-5", "anthropic", "claude-sonnet-4-5"},
		{"groq/llama-3.3-70b", "groq", "llama-3.3-70b"},
		{"gpt-4o", "openai", "gpt-4o"},
		{"OpenAI/gpt-4o", "openai", "gpt-4o"},
	}
	for _, tt := range tests {
		provider, model := splitModelID(tt.id)
		if provider != tt.provider || model != tt.model {
			t.Errorf("splitModelID(%q) = (%q, %q), want (%q, %q)",
				tt.id, provider, model, tt.provider, tt.model)
		}
	}
}

func TestBuildParams_SchemaBecomesTrailingInstruction(t *testing.T) {
	schema := &llm.Schema{
		Name: "reading_artifacts",
		Definition: map[string]any{
			"type": "object",
			"required": []string{
				"insights", "openQuestions", "quotes",
				"followUpQuestions", "contextExpansions",
			},
		},
	}
	params := buildParams("claude-sonnet-4-5", llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "distill notes"},
			{Role: "user", Content: "transcript"},
		},
		ResponseSchema: schema,
	})

	if len(params.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (schema instruction appended)", len(params.Messages))
	}
	last := params.Messages[len(params.Messages)-1]
	if last.Role != anyllmlib.RoleUser {
		t.Fatalf("instruction role = %q, want user", last.Role)
	}
	content, ok := last.Content.(string)
	if !ok {
		t.Fatalf("instruction content is %T, want string", last.Content)
	}
	for _, name := range []string{
		"reading_artifacts", "insights", "openQuestions", "quotes",
		"followUpQuestions", "contextExpansions",
	} {
		if !strings.Contains(content, name) {
			t.Errorf("schema instruction missing %q:\n%s", name, content)
		}
	}
}

func TestBuildParams_NoSchemaAddsNothing(t *testing.T) {
	params := buildParams("gpt-4o", llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hello"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(params.Messages))
	}
}

func TestBuildParams_DecodeControls(t *testing.T) {
	temp := 0.2
	params := buildParams("gpt-4o", llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		MaxTokens:   256,
		Temperature: &temp,
	})
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Fatalf("maxTokens = %v", params.MaxTokens)
	}
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Fatalf("temperature = %v", params.Temperature)
	}
}
