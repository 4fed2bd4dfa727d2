package synthesis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/pkg/llm"
)

// Source labels how a synthesis result was produced.
type Source string

const (
	// SourceProvider means a language model produced the artifacts.
	SourceProvider Source = "provider"

	// SourceFallback means the heuristic extractor produced them.
	SourceFallback Source = "fallback"

	// SourceEmptyTranscript means the transcript was empty and synthesis
	// short-circuited without any external call.
	SourceEmptyTranscript Source = "empty-transcript"
)

// Result is the outcome of one synthesis run.
type Result struct {
	Artifacts Artifacts

	// Source labels the production path.
	Source Source

	// Model is the concrete model that served the call; may differ from
	// RequestedModel. Empty on fallback paths.
	Model string

	// RequestedModel is the model id that was asked for.
	RequestedModel string

	// CostUSD is the estimated spend. Zero on fallback paths.
	CostUSD float64

	// Usage is the backend-reported token accounting.
	Usage llm.Usage
}

// Config tunes the Orchestrator.
type Config struct {
	// PrimaryModel is tried first; FallbackModels follow in order.
	PrimaryModel   string
	FallbackModels []string

	// MaxTokens bounds every completion.
	MaxTokens int

	// Temperature, TopP, and Seed are optional decode controls.
	Temperature *float64
	TopP        *float64
	Seed        *int64

	// TranscriptCharLimit hard-truncates the transcript in the prompt.
	TranscriptCharLimit int

	// Limits caps the artifact collections.
	Limits Limits
}

// Orchestrator runs synthesis with model-level fallback and silent
// degradation to the heuristic extractor. A nil client means no model is
// configured and every run takes the heuristic path.
type Orchestrator struct {
	client llm.Client
	cfg    Config
}

// New creates an Orchestrator. client may be nil.
func New(client llm.Client, cfg Config) *Orchestrator {
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.TranscriptCharLimit == 0 {
		cfg.TranscriptCharLimit = 8000
	}
	return &Orchestrator{client: client, cfg: cfg}
}

// Synthesize produces artifacts for a transcript. It never returns an error:
// model failures of any kind degrade to the heuristic extractor, because a
// reading session must not be lost just because a model was unavailable.
func (o *Orchestrator) Synthesize(ctx context.Context, transcript string, pack *contextpack.Pack) *Result {
	if strings.TrimSpace(transcript) == "" {
		return &Result{Artifacts: Empty(), Source: SourceEmptyTranscript}
	}

	bookTitle := ""
	if pack != nil {
		bookTitle = pack.Current.Title
	}

	if o.client == nil {
		slog.Debug("no synthesis model configured; using heuristic extractor")
		return o.fallback(transcript, bookTitle)
	}

	messages := BuildPrompt(transcript, pack, o.cfg.TranscriptCharLimit)

	for _, model := range o.candidateModels() {
		result, err := o.attempt(ctx, model, messages)
		if err == nil {
			return result
		}
		if llm.IsRateLimited(err) {
			slog.Warn("synthesis model rate limited, trying next", "model", model, "error", err)
		} else {
			slog.Error("synthesis model failed, trying next", "model", model, "error", err)
		}
	}

	slog.Warn("all synthesis models failed; degrading to heuristic extractor",
		"primary", o.cfg.PrimaryModel)
	return o.fallback(transcript, bookTitle)
}

// attempt runs one model call and post-processes its output.
func (o *Orchestrator) attempt(ctx context.Context, model string, messages []llm.Message) (*Result, error) {
	resp, err := o.client.Complete(ctx, llm.Request{
		Model:          model,
		Messages:       messages,
		MaxTokens:      o.cfg.MaxTokens,
		Temperature:    o.cfg.Temperature,
		TopP:           o.cfg.TopP,
		Seed:           o.cfg.Seed,
		ResponseSchema: ArtifactSchema(),
	})
	if err != nil {
		return nil, err
	}

	artifacts, err := Parse([]byte(resp.Content))
	if err != nil {
		return nil, err
	}

	served := resp.Model
	if served == "" {
		served = model
	}

	return &Result{
		Artifacts:      Clamp(artifacts, o.cfg.Limits),
		Source:         SourceProvider,
		Model:          served,
		RequestedModel: model,
		CostUSD:        EstimateCost(served, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		Usage:          resp.Usage,
	}, nil
}

// fallback runs the heuristic extractor with zero cost.
func (o *Orchestrator) fallback(transcript, bookTitle string) *Result {
	return &Result{
		Artifacts:      ExtractHeuristic(transcript, bookTitle, o.cfg.Limits),
		Source:         SourceFallback,
		RequestedModel: o.cfg.PrimaryModel,
	}
}

// candidateModels returns the primary followed by fallbacks, de-duplicated,
// preserving order.
func (o *Orchestrator) candidateModels() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range append([]string{o.cfg.PrimaryModel}, o.cfg.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
