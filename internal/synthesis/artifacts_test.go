package synthesis

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize_NonObjectInputs(t *testing.T) {
	for _, raw := range []any{nil, "a string", 42.0, []any{"list"}, true} {
		got := Normalize(raw)
		if !reflect.DeepEqual(got, Empty()) {
			t.Errorf("Normalize(%v) = %+v, want canonical empty", raw, got)
		}
	}
}

func TestNormalize_DropsMalformedItems(t *testing.T) {
	raw := map[string]any{
		"insights": []any{
			map[string]any{"title": "Good", "content": "kept"},
			map[string]any{"title": "", "content": "missing title"},
			map[string]any{"title": "Missing content"},
			map[string]any{"title": "Coerced", "content": "x", "source": 12.0},
			"not an object",
		},
		"openQuestions":     []any{"why?", "", "  ", 7.0, "how?"},
		"quotes":            []any{map[string]any{"text": "a quote"}, map[string]any{"text": ""}},
		"followUpQuestions": "wrong type entirely",
		"contextExpansions": []any{
			map[string]any{"title": "T", "content": "C", "source": "ch. 3"},
		},
	}

	got := Normalize(raw)

	if len(got.Insights) != 2 {
		t.Fatalf("insights = %d, want 2", len(got.Insights))
	}
	if got.Insights[1].Source != "" {
		t.Fatalf("non-string source should coerce to absent, got %q", got.Insights[1].Source)
	}
	if want := []string{"why?", "how?"}; !reflect.DeepEqual(got.OpenQuestions, want) {
		t.Fatalf("openQuestions = %v, want %v", got.OpenQuestions, want)
	}
	if len(got.Quotes) != 1 || got.Quotes[0].Text != "a quote" {
		t.Fatalf("quotes = %+v", got.Quotes)
	}
	if len(got.FollowUps) != 0 {
		t.Fatalf("wrong-typed followUps should be empty, got %v", got.FollowUps)
	}
	if len(got.Expansions) != 1 || got.Expansions[0].Source != "ch. 3" {
		t.Fatalf("expansions = %+v", got.Expansions)
	}
}

func TestClamp_CountsAndLengths(t *testing.T) {
	a := Empty()
	for range 12 {
		a.Insights = append(a.Insights, Insight{
			Title:   strings.Repeat("t", 300),
			Content: strings.Repeat("c", 900),
		})
		a.OpenQuestions = append(a.OpenQuestions, "q?")
		a.Quotes = append(a.Quotes, Quote{Text: "quoted"})
		a.FollowUps = append(a.FollowUps, "follow?")
		a.Expansions = append(a.Expansions, Expansion{Title: "t", Content: "c"})
	}

	got := Clamp(a, DefaultLimits())

	if len(got.Insights) != 6 {
		t.Fatalf("insights = %d, want 6", len(got.Insights))
	}
	if len(got.OpenQuestions) != 5 {
		t.Fatalf("openQuestions = %d, want 5", len(got.OpenQuestions))
	}
	if len(got.Quotes) != 6 {
		t.Fatalf("quotes = %d, want 6", len(got.Quotes))
	}
	if len(got.FollowUps) != 4 {
		t.Fatalf("followUps = %d, want 4", len(got.FollowUps))
	}
	if len(got.Expansions) != 4 {
		t.Fatalf("expansions = %d, want 4", len(got.Expansions))
	}
	if n := len(got.Insights[0].Title); n != 120 {
		t.Fatalf("title length = %d, want 120", n)
	}
	if n := len(got.Insights[0].Content); n != 600 {
		t.Fatalf("content length = %d, want 600", n)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParse_ValidPayload(t *testing.T) {
	got, err := Parse([]byte(`{"insights":[{"title":"A","content":"B"}],"openQuestions":[],"quotes":[],"followUpQuestions":[],"contextExpansions":[]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Insights) != 1 || got.Insights[0].Title != "A" {
		t.Fatalf("insights = %+v", got.Insights)
	}
}
