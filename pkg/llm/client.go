// Package llm defines the minimal chat-completion client the synthesis
// orchestrator depends on.
//
// The pipeline needs exactly one capability from a language model: send a
// prompt, demand schema-constrained JSON back, and learn what it cost. There
// is no streaming and no tool calling here — implementations wrap a vendor
// SDK (openai subpackage) or a multi-provider bridge (anyllm subpackage) and
// must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimited is wrapped by implementations when the backend throttles a
// request (HTTP 429 or equivalent). The orchestrator logs these at warn
// rather than error.
var ErrRateLimited = errors.New("llm: rate limited")

// Message is a single prompt message.
type Message struct {
	// Role is "system" or "user".
	Role string

	// Content is the text content.
	Content string
}

// Schema is a strict JSON schema the completion must conform to.
type Schema struct {
	// Name labels the schema in the request.
	Name string

	// Definition is the raw JSON Schema document.
	Definition map[string]any
}

// Request carries everything one completion needs.
type Request struct {
	// Model is the model id to request. The backend may serve the call with
	// a different concrete model; Response.Model reports what actually ran.
	Model string

	// Messages is the ordered prompt.
	Messages []Message

	// MaxTokens bounds the completion size. Must be positive.
	MaxTokens int

	// Temperature, TopP, and Seed are optional decode controls. Nil means
	// backend default.
	Temperature *float64
	TopP        *float64
	Seed        *int64

	// ResponseSchema, when non-nil, constrains the output to strict JSON.
	ResponseSchema *Schema
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a completed (non-streaming) completion.
type Response struct {
	// Content is the full completion text.
	Content string

	// Model is the concrete model that served the call. May differ from the
	// requested id (providers alias and silently upgrade model names).
	Model string

	// Usage is the reported token accounting. Zero when the backend omits it.
	Usage Usage
}

// Client is the abstraction over any chat-completion backend.
type Client interface {
	// Complete sends req and blocks until the full response arrives or ctx
	// is cancelled.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// IsRateLimited reports whether err was caused by backend throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
