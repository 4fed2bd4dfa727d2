package synthesis

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/quillreads/voicenotes/pkg/llm"
	"github.com/quillreads/voicenotes/pkg/llm/mock"
)

const artifactJSON = `{
	"insights": [{"title": "Uncertainty as theme", "content": "The narrator embraces not knowing."}],
	"openQuestions": ["What does the ending imply?"],
	"quotes": [],
	"followUpQuestions": ["Re-read chapter two?"],
	"contextExpansions": []
}`

func TestSynthesize_EmptyTranscriptShortCircuits(t *testing.T) {
	client := &mock.Client{}
	o := New(client, Config{PrimaryModel: "gpt-5-mini"})

	for _, transcript := range []string{"", "   ", "\n\t"} {
		res := o.Synthesize(context.Background(), transcript, nil)
		if res.Source != SourceEmptyTranscript {
			t.Fatalf("source = %q, want empty-transcript", res.Source)
		}
		if !reflect.DeepEqual(res.Artifacts, Empty()) {
			t.Fatalf("artifacts = %+v, want empty", res.Artifacts)
		}
		if res.CostUSD != 0 {
			t.Fatalf("cost = %v, want 0", res.CostUSD)
		}
	}
	if client.CallCount() != 0 {
		t.Fatal("no model call may be made for an empty transcript")
	}
}

func TestSynthesize_NoClientFallsBackToHeuristic(t *testing.T) {
	o := New(nil, Config{PrimaryModel: "gpt-5-mini"})

	transcript := "I liked how the author handled uncertainty. What does this mean for the ending?"
	res := o.Synthesize(context.Background(), transcript, nil)

	if res.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", res.Source)
	}
	if len(res.Artifacts.Insights) == 0 {
		t.Fatal("heuristic should extract at least one insight")
	}
	if len(res.Artifacts.FollowUps) == 0 {
		t.Fatal("heuristic should produce a follow-up question")
	}
	if len(res.Artifacts.OpenQuestions) == 0 {
		t.Fatal("the question sentence should become an open question")
	}
	if res.CostUSD != 0 {
		t.Fatalf("fallback cost = %v, want 0", res.CostUSD)
	}
}

func TestSynthesize_ProviderSuccess(t *testing.T) {
	client := &mock.Client{Response: &llm.Response{
		Content: artifactJSON,
		Model:   "gpt-5-mini-2026-01",
		Usage:   llm.Usage{PromptTokens: 1200, CompletionTokens: 300},
	}}
	o := New(client, Config{PrimaryModel: "gpt-5-mini"})

	res := o.Synthesize(context.Background(), "Some real transcript.", nil)

	if res.Source != SourceProvider {
		t.Fatalf("source = %q, want provider", res.Source)
	}
	if res.Model != "gpt-5-mini-2026-01" {
		t.Fatalf("model = %q; served model must be reported", res.Model)
	}
	if res.RequestedModel != "gpt-5-mini" {
		t.Fatalf("requested model = %q", res.RequestedModel)
	}
	if res.CostUSD <= 0 {
		t.Fatalf("cost = %v, want positive", res.CostUSD)
	}
	if len(res.Artifacts.Insights) != 1 {
		t.Fatalf("insights = %+v", res.Artifacts.Insights)
	}
	if client.Requests[0].ResponseSchema == nil {
		t.Fatal("model call must carry the artifact schema")
	}
}

func TestSynthesize_ModelFallbackOrder(t *testing.T) {
	var models []string
	client := &mock.Client{CompleteFunc: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		models = append(models, req.Model)
		if req.Model == "backup" {
			return &llm.Response{Content: artifactJSON, Model: "backup"}, nil
		}
		return nil, llm.ErrRateLimited
	}}
	o := New(client, Config{PrimaryModel: "primary", FallbackModels: []string{"primary", "backup"}})

	res := o.Synthesize(context.Background(), "transcript", nil)

	if res.Source != SourceProvider {
		t.Fatalf("source = %q, want provider", res.Source)
	}
	if res.Model != "backup" {
		t.Fatalf("model = %q, want backup", res.Model)
	}
	if want := []string{"primary", "backup"}; !reflect.DeepEqual(models, want) {
		t.Fatalf("attempted models = %v, want %v (de-duplicated, in order)", models, want)
	}
}

func TestSynthesize_AllModelsFailDegrades(t *testing.T) {
	client := &mock.Client{Err: errors.New("provider exploded")}
	o := New(client, Config{PrimaryModel: "primary", FallbackModels: []string{"backup"}})

	res := o.Synthesize(context.Background(), "I wonder if the framing device holds up. It felt thin in places.", nil)

	if res.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", res.Source)
	}
	if res.CostUSD != 0 {
		t.Fatalf("degraded cost = %v, want 0", res.CostUSD)
	}
	if client.CallCount() != 2 {
		t.Fatalf("calls = %d, want 2 (one per candidate model)", client.CallCount())
	}
}

func TestSynthesize_MalformedCompletionDegrades(t *testing.T) {
	client := &mock.Client{Response: &llm.Response{Content: "not json at all"}}
	o := New(client, Config{PrimaryModel: "primary"})

	res := o.Synthesize(context.Background(), "A transcript worth keeping.", nil)
	if res.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback on schema mismatch", res.Source)
	}
}
