// Package store defines the persistence interfaces and domain records for the
// voicenotes pipeline. All durable state lives behind these interfaces; the
// pipeline itself holds no shared mutable state.
//
// The canonical implementation is the PostgreSQL store in the postgres
// subpackage; the mock subpackage provides in-memory doubles for tests.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// SessionStore persists recording sessions and their transcript segments.
type SessionStore interface {
	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession fetches a session by id, returning ErrNotFound when absent.
	GetSession(ctx context.Context, id string) (*Session, error)

	// UpdateSession overwrites the mutable fields of an existing session.
	UpdateSession(ctx context.Context, s *Session) error

	// PatchTelemetry updates only the telemetry block of a session. Callers
	// treat failures as non-fatal.
	PatchTelemetry(ctx context.Context, id string, t Telemetry) error

	// AppendSegment appends one live-transcript segment. Seq is assigned by
	// the store and strictly increases per session.
	AppendSegment(ctx context.Context, seg *TranscriptSegment) error

	// ListSegments returns a session's segments ordered by Seq.
	ListSegments(ctx context.Context, sessionID string) ([]TranscriptSegment, error)
}

// LibraryStore reads the owner's books and notes for context packing.
type LibraryStore interface {
	// GetBook fetches a book by id, returning ErrNotFound when absent.
	GetBook(ctx context.Context, id string) (*Book, error)

	// ListBooksByOwner returns all of an owner's books, most recently
	// updated first.
	ListBooksByOwner(ctx context.Context, ownerID string) ([]Book, error)

	// ListNotesByOwner returns all of an owner's notes, most recent first.
	ListNotesByOwner(ctx context.Context, ownerID string) ([]Note, error)

	// SearchNotes returns the owner's topK notes ranked by embedding
	// similarity to the query vector. Notes without embeddings are excluded.
	SearchNotes(ctx context.Context, ownerID string, query []float32, topK int) ([]Note, error)
}

// ArtifactStore persists synthesis artifacts.
type ArtifactStore interface {
	// ReplaceArtifacts atomically replaces a session's artifacts with recs.
	ReplaceArtifacts(ctx context.Context, sessionID string, recs []ArtifactRecord) error

	// ListArtifacts returns a session's artifacts ordered by kind then Seq.
	ListArtifacts(ctx context.Context, sessionID string) ([]ArtifactRecord, error)
}

// BlobStore stores and resolves uploaded audio. The production implementation
// is the surrounding service's object storage; this core only depends on the
// interface.
type BlobStore interface {
	// Put stores data under a new reference and returns it.
	Put(ctx context.Context, ownerID string, data []byte, mimeType string) (ref string, err error)

	// ResolveURL returns a fetchable URL for a stored reference.
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// Store aggregates every persistence capability the pipeline needs.
type Store interface {
	SessionStore
	LibraryStore
	ArtifactStore
}
