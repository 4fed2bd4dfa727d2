// Package anyllm provides an llm.Client backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface. It
// lets a fallback model list cross providers: model ids may be prefixed with
// a provider name ("anthropic/claude-sonnet-4-5", "groq/llama-3.3-70b"), and
// unprefixed ids default to OpenAI.
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/quillreads/voicenotes/pkg/llm"
)

// Client implements llm.Client by routing each request to an any-llm-go
// backend chosen from the model id's provider prefix. Backends are created
// lazily and cached.
type Client struct {
	opts []anyllmlib.Option

	mu       sync.Mutex
	backends map[string]anyllmlib.Provider
}

// Compile-time interface assertion.
var _ llm.Client = (*Client)(nil)

// New creates a Client. opts (e.g. anyllmlib.WithAPIKey) are applied to every
// backend; without an API key option each backend falls back to its provider's
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(opts ...anyllmlib.Option) *Client {
	return &Client{
		opts:     opts,
		backends: map[string]anyllmlib.Provider{},
	}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	providerName, model := splitModelID(req.Model)

	backend, err := c.backend(providerName)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %w", err)
	}

	params := buildParams(model, req)
	resp, err := backend.Completion(ctx, params)
	if err != nil {
		if isRateLimit(err) {
			return nil, fmt.Errorf("anyllm: completion: %w: %v", llm.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	out := &llm.Response{
		Content: resp.Choices[0].Message.ContentString(),
		Model:   resp.Model,
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// backend returns the cached backend for providerName, creating it on first use.
func (c *Client) backend(providerName string) (anyllmlib.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[providerName]; ok {
		return b, nil
	}
	b, err := createBackend(providerName, c.opts...)
	if err != nil {
		return nil, err
	}
	c.backends[providerName] = b
	return b, nil
}

// buildParams converts an llm.Request into any-llm-go completion parameters.
func buildParams(model string, req llm.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	for _, m := range req.Messages {
		role := anyllmlib.RoleUser
		if m.Role == "system" {
			role = anyllmlib.RoleSystem
		}
		messages = append(messages, anyllmlib.Message{Role: role, Content: m.Content})
	}

	// The bridge has no cross-provider response-format parameter, so the
	// schema rides along as a trailing instruction instead. TopP and Seed are
	// likewise not exposed by the bridge and are dropped.
	if instr, ok := schemaInstruction(req.ResponseSchema); ok {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleUser, Content: instr})
	}

	params := anyllmlib.CompletionParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	if req.Temperature != nil {
		t := *req.Temperature
		params.Temperature = &t
	}
	return params
}

// schemaInstruction renders a response schema as a prompt instruction for
// backends that cannot enforce one natively.
func schemaInstruction(s *llm.Schema) (string, bool) {
	if s == nil {
		return "", false
	}
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf(
		"Respond with a single JSON object (no prose, no code fences) conforming to the %q JSON Schema:\n%s",
		s.Name, def,
	), true
}

// splitModelID separates an optional provider prefix from a model id.
// "anthropic/claude-sonnet-4-5" → ("anthropic", "claude-sonnet-4-5");
// "gpt-4o" → ("openai", "gpt-4o").
func splitModelID(id string) (provider, model string) {
	if i := strings.IndexByte(id, '/'); i > 0 {
		return strings.ToLower(id[:i]), id[i+1:]
	}
	return "openai", id
}

// createBackend creates the underlying any-llm-go provider for providerName.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch providerName {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// isRateLimit detects throttling from the backend's error text. any-llm-go
// does not expose typed HTTP errors across providers.
func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
