package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quillreads/voicenotes/pkg/store"
)

// sessionColumns is the column list shared by every session SELECT, kept in
// one place so scans cannot drift out of order.
const sessionColumns = `
	id, owner_id, book_id, status, audio_ref, audio_mime, duration_sec,
	cap_reached, live_transcript, final_transcript, retry_count, last_retry_at,
	transcribe_ms, synthesize_ms, stt_provider, synth_model, cost_usd, degraded,
	failed_stage, last_error, created_at, updated_at`

// CreateSession implements [store.SessionStore].
func (s *Store) CreateSession(ctx context.Context, sess *store.Session) error {
	const q = `
		INSERT INTO sessions
		    (id, owner_id, book_id, status, audio_ref, audio_mime, duration_sec,
		     cap_reached, live_transcript, final_transcript, retry_count, last_retry_at,
		     transcribe_ms, synthesize_ms, stt_provider, synth_model, cost_usd, degraded,
		     failed_stage, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	_, err := s.pool.Exec(ctx, q,
		sess.ID, sess.OwnerID, sess.BookID, string(sess.Status),
		sess.AudioRef, sess.AudioMIME, sess.DurationSec,
		sess.CapReached, sess.LiveTranscript, sess.FinalTranscript,
		sess.RetryCount, nullableTime(sess.LastRetryAt),
		sess.Telemetry.TranscribeMs, sess.Telemetry.SynthesizeMs,
		sess.Telemetry.Provider, sess.Telemetry.Model,
		sess.Telemetry.CostUSD, sess.Telemetry.Degraded,
		sess.FailedStage, sess.LastError, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: create session: %w", err)
	}
	return nil
}

// GetSession implements [store.SessionStore].
func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	q := "SELECT" + sessionColumns + " FROM sessions WHERE id = $1"

	row := s.pool.QueryRow(ctx, q, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get session: %w", err)
	}
	return sess, nil
}

// UpdateSession implements [store.SessionStore]. It overwrites every mutable
// field of the session row.
func (s *Store) UpdateSession(ctx context.Context, sess *store.Session) error {
	const q = `
		UPDATE sessions SET
		    status = $2, audio_ref = $3, audio_mime = $4, duration_sec = $5,
		    cap_reached = $6, live_transcript = $7, final_transcript = $8,
		    retry_count = $9, last_retry_at = $10,
		    transcribe_ms = $11, synthesize_ms = $12, stt_provider = $13,
		    synth_model = $14, cost_usd = $15, degraded = $16,
		    failed_stage = $17, last_error = $18, updated_at = $19
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		sess.ID, string(sess.Status), sess.AudioRef, sess.AudioMIME, sess.DurationSec,
		sess.CapReached, sess.LiveTranscript, sess.FinalTranscript,
		sess.RetryCount, nullableTime(sess.LastRetryAt),
		sess.Telemetry.TranscribeMs, sess.Telemetry.SynthesizeMs,
		sess.Telemetry.Provider, sess.Telemetry.Model,
		sess.Telemetry.CostUSD, sess.Telemetry.Degraded,
		sess.FailedStage, sess.LastError, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// PatchTelemetry implements [store.SessionStore].
func (s *Store) PatchTelemetry(ctx context.Context, id string, t store.Telemetry) error {
	const q = `
		UPDATE sessions SET
		    transcribe_ms = $2, synthesize_ms = $3, stt_provider = $4,
		    synth_model = $5, cost_usd = $6, degraded = $7, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		id, t.TranscribeMs, t.SynthesizeMs, t.Provider, t.Model, t.CostUSD, t.Degraded)
	if err != nil {
		return fmt.Errorf("postgres store: patch telemetry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendSegment implements [store.SessionStore]. Seq assignment happens in
// the INSERT so concurrent appends cannot produce duplicate sequence numbers.
func (s *Store) AppendSegment(ctx context.Context, seg *store.TranscriptSegment) error {
	const q = `
		INSERT INTO transcript_segments (session_id, seq, text, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
		FROM   transcript_segments
		WHERE  session_id = $1
		RETURNING seq`

	createdAt := seg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if err := s.pool.QueryRow(ctx, q, seg.SessionID, seg.Text, createdAt).Scan(&seg.Seq); err != nil {
		return fmt.Errorf("postgres store: append segment: %w", err)
	}
	seg.CreatedAt = createdAt
	return nil
}

// ListSegments implements [store.SessionStore].
func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]store.TranscriptSegment, error) {
	const q = `
		SELECT session_id, seq, text, created_at
		FROM   transcript_segments
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list segments: %w", err)
	}
	segs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.TranscriptSegment, error) {
		var seg store.TranscriptSegment
		err := row.Scan(&seg.SessionID, &seg.Seq, &seg.Text, &seg.CreatedAt)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list segments: %w", err)
	}
	return segs, nil
}

// scanSession scans one session row.
func scanSession(row pgx.Row) (*store.Session, error) {
	var (
		sess        store.Session
		status      string
		lastRetryAt sql.NullTime
	)
	if err := row.Scan(
		&sess.ID, &sess.OwnerID, &sess.BookID, &status,
		&sess.AudioRef, &sess.AudioMIME, &sess.DurationSec,
		&sess.CapReached, &sess.LiveTranscript, &sess.FinalTranscript,
		&sess.RetryCount, &lastRetryAt,
		&sess.Telemetry.TranscribeMs, &sess.Telemetry.SynthesizeMs,
		&sess.Telemetry.Provider, &sess.Telemetry.Model,
		&sess.Telemetry.CostUSD, &sess.Telemetry.Degraded,
		&sess.FailedStage, &sess.LastError, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = store.Status(status)
	if lastRetryAt.Valid {
		sess.LastRetryAt = lastRetryAt.Time
	}
	return &sess, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
