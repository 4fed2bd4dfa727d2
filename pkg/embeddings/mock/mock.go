// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"

	"github.com/quillreads/voicenotes/pkg/embeddings"
)

// Provider is a scripted mock. EmbedFunc controls the output; when unset,
// Embed returns Vector.
type Provider struct {
	Vector    []float32
	Err       error
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Dim       int
	Model     string

	// Texts records every Embed input.
	Texts []string
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (m *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Texts = append(m.Texts, text)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// Dimensions implements embeddings.Provider.
func (m *Provider) Dimensions() int {
	if m.Dim == 0 {
		return len(m.Vector)
	}
	return m.Dim
}

// ModelID implements embeddings.Provider.
func (m *Provider) ModelID() string {
	if m.Model == "" {
		return "mock-embed"
	}
	return m.Model
}
