// Package embeddings defines the Provider interface for vector embedding
// backends. The pipeline uses embeddings for one thing: ranking a reader's
// notes by semantic relevance to a fresh transcript before context packing.
// When no embedding provider is configured, ranking falls back to recency.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend. All vectors
// returned by a single Provider instance share the dimensionality reported by
// Dimensions.
type Provider interface {
	// Embed computes the embedding vector for a single text string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces.
	Dimensions() int

	// ModelID returns the provider-specific embedding model identifier.
	ModelID() string
}
