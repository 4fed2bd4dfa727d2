// Package postgres provides the PostgreSQL-backed implementation of the
// voicenotes persistence interfaces: sessions with their transcript segments,
// the owner's library of books and notes, and synthesis artifacts.
//
// All tables share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS and uses it for semantic
// note search.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT         PRIMARY KEY,
    owner_id         TEXT         NOT NULL,
    book_id          TEXT         NOT NULL,
    status           TEXT         NOT NULL,
    audio_ref        TEXT         NOT NULL DEFAULT '',
    audio_mime       TEXT         NOT NULL DEFAULT '',
    duration_sec     DOUBLE PRECISION NOT NULL DEFAULT 0,
    cap_reached      BOOLEAN      NOT NULL DEFAULT FALSE,
    live_transcript  TEXT         NOT NULL DEFAULT '',
    final_transcript TEXT         NOT NULL DEFAULT '',
    retry_count      INTEGER      NOT NULL DEFAULT 0,
    last_retry_at    TIMESTAMPTZ,
    transcribe_ms    BIGINT       NOT NULL DEFAULT 0,
    synthesize_ms    BIGINT       NOT NULL DEFAULT 0,
    stt_provider     TEXT         NOT NULL DEFAULT '',
    synth_model      TEXT         NOT NULL DEFAULT '',
    cost_usd         DOUBLE PRECISION NOT NULL DEFAULT 0,
    degraded         BOOLEAN      NOT NULL DEFAULT FALSE,
    failed_stage     TEXT         NOT NULL DEFAULT '',
    last_error       TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner_id
    ON sessions (owner_id);

CREATE INDEX IF NOT EXISTS idx_sessions_status
    ON sessions (status);

CREATE TABLE IF NOT EXISTS transcript_segments (
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    seq         INTEGER      NOT NULL,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, seq)
);
`

const ddlArtifacts = `
CREATE TABLE IF NOT EXISTS artifacts (
    session_id  TEXT         NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    kind        TEXT         NOT NULL,
    seq         INTEGER      NOT NULL,
    title       TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    source      TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, kind, seq)
);
`

// ddlLibrary returns the books/notes DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlLibrary(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS books (
    id          TEXT         PRIMARY KEY,
    owner_id    TEXT         NOT NULL,
    title       TEXT         NOT NULL,
    author      TEXT         NOT NULL DEFAULT '',
    description TEXT         NOT NULL DEFAULT '',
    status      TEXT         NOT NULL DEFAULT 'reading',
    visibility  TEXT         NOT NULL DEFAULT 'private',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_books_owner_id
    ON books (owner_id);

CREATE TABLE IF NOT EXISTS notes (
    id          TEXT         PRIMARY KEY,
    owner_id    TEXT         NOT NULL,
    book_id     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notes_owner_id
    ON notes (owner_id);

CREATE INDEX IF NOT EXISTS idx_notes_book_id
    ON notes (book_id);

CREATE INDEX IF NOT EXISTS idx_notes_embedding
    ON notes USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates all required extensions, tables, and indexes if they do not
// exist. It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	for _, ddl := range []string{ddlLibrary(embeddingDimensions), ddlSessions, ddlArtifacts} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
