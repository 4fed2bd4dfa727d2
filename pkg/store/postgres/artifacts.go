package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quillreads/voicenotes/pkg/store"
)

// ReplaceArtifacts implements [store.ArtifactStore]. The delete and inserts
// run in one transaction so a reader never observes a half-replaced set.
func (s *Store) ReplaceArtifacts(ctx context.Context, sessionID string, recs []store.ArtifactRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: replace artifacts: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM artifacts WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres store: replace artifacts: %w", err)
	}

	const q = `
		INSERT INTO artifacts (session_id, kind, seq, title, content, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, rec := range recs {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.Exec(ctx, q,
			sessionID, string(rec.Kind), rec.Seq, rec.Title, rec.Content, rec.Source, createdAt,
		); err != nil {
			return fmt.Errorf("postgres store: replace artifacts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: replace artifacts: %w", err)
	}
	return nil
}

// ListArtifacts implements [store.ArtifactStore].
func (s *Store) ListArtifacts(ctx context.Context, sessionID string) ([]store.ArtifactRecord, error) {
	const q = `
		SELECT session_id, kind, seq, title, content, source, created_at
		FROM   artifacts
		WHERE  session_id = $1
		ORDER  BY kind, seq`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list artifacts: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ArtifactRecord, error) {
		var (
			rec  store.ArtifactRecord
			kind string
		)
		err := row.Scan(&rec.SessionID, &kind, &rec.Seq, &rec.Title, &rec.Content, &rec.Source, &rec.CreatedAt)
		rec.Kind = store.ArtifactKind(kind)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list artifacts: %w", err)
	}
	return recs, nil
}
