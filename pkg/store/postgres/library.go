package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quillreads/voicenotes/pkg/store"
)

// GetBook implements [store.LibraryStore].
func (s *Store) GetBook(ctx context.Context, id string) (*store.Book, error) {
	const q = `
		SELECT id, owner_id, title, author, description, status, visibility, updated_at
		FROM   books
		WHERE  id = $1`

	var (
		b          store.Book
		status     string
		visibility string
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.Description,
		&status, &visibility, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get book: %w", err)
	}
	b.Status = store.BookStatus(status)
	b.Visibility = store.Visibility(visibility)
	return &b, nil
}

// ListBooksByOwner implements [store.LibraryStore].
func (s *Store) ListBooksByOwner(ctx context.Context, ownerID string) ([]store.Book, error) {
	const q = `
		SELECT id, owner_id, title, author, description, status, visibility, updated_at
		FROM   books
		WHERE  owner_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list books: %w", err)
	}
	books, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Book, error) {
		var (
			b          store.Book
			status     string
			visibility string
		)
		err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.Description,
			&status, &visibility, &b.UpdatedAt)
		b.Status = store.BookStatus(status)
		b.Visibility = store.Visibility(visibility)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list books: %w", err)
	}
	return books, nil
}

// ListNotesByOwner implements [store.LibraryStore]. Embeddings are not loaded
// on the list path; they only matter for [Store.SearchNotes].
func (s *Store) ListNotesByOwner(ctx context.Context, ownerID string) ([]store.Note, error) {
	const q = `
		SELECT id, owner_id, book_id, text, created_at
		FROM   notes
		WHERE  owner_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list notes: %w", err)
	}
	notes, err := pgx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list notes: %w", err)
	}
	return notes, nil
}

// SearchNotes implements [store.LibraryStore]. It ranks the owner's notes by
// cosine distance to the query embedding using the pgvector HNSW index; notes
// without embeddings never match.
func (s *Store) SearchNotes(ctx context.Context, ownerID string, query []float32, topK int) ([]store.Note, error) {
	const q = `
		SELECT id, owner_id, book_id, text, created_at
		FROM   notes
		WHERE  owner_id = $1
		  AND  embedding IS NOT NULL
		ORDER  BY embedding <=> $2
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, ownerID, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search notes: %w", err)
	}
	notes, err := pgx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search notes: %w", err)
	}
	return notes, nil
}

// scanNote scans the common note column set.
func scanNote(row pgx.CollectableRow) (store.Note, error) {
	var n store.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.BookID, &n.Text, &n.CreatedAt)
	return n, err
}
