// Package pipeline drives a recording session from uploaded audio to reviewed
// artifacts: fetch, transcribe, pack context, synthesize, persist. Each run
// owns its session record; failures mark the session failed with the stage
// that broke and never leave it stuck in an intermediate status.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillreads/voicenotes/internal/audiofetch"
	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/internal/gateway"
	"github.com/quillreads/voicenotes/internal/guardrail"
	"github.com/quillreads/voicenotes/internal/observe"
	"github.com/quillreads/voicenotes/internal/session"
	"github.com/quillreads/voicenotes/internal/synthesis"
	"github.com/quillreads/voicenotes/pkg/embeddings"
	"github.com/quillreads/voicenotes/pkg/store"
)

// semanticTopK bounds the note candidate pool handed to the packer when
// semantic ranking is available.
const semanticTopK = 50

// Pipeline wires the processing stages together. All fields must be set
// except Embedder, which is optional: without it the note pool falls back to
// pure recency.
type Pipeline struct {
	Store        store.Store
	Blobs        store.BlobStore
	Fetcher      *audiofetch.Fetcher
	Gateway      *gateway.Gateway
	Orchestrator *synthesis.Orchestrator
	Guard        *guardrail.Monitor
	Embedder     embeddings.Provider
	Metrics      *observe.Metrics

	// PackOptions tunes the context packer.
	PackOptions contextpack.Options
}

// Run processes one session end to end. The session must be in the
// transcribing state on entry (the upload handler advances it before handing
// off). Run returns the error that failed the session, if any; the session
// record itself is always updated to reflect the outcome.
func (p *Pipeline) Run(ctx context.Context, sessionID string) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()
	log := observe.Logger(ctx).With("session", sessionID)

	m := p.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	m.ActiveSessions.Add(ctx, 1)
	defer m.ActiveSessions.Add(ctx, -1)

	sess, err := p.Store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("pipeline: load session: %w", err)
	}

	var telemetry store.Telemetry

	// Fetch audio.
	fetchStart := time.Now()
	audio, mimeType, err := p.fetchAudio(ctx, sess)
	m.FetchDuration.Record(ctx, time.Since(fetchStart).Seconds())
	if err != nil {
		return p.fail(ctx, sess, session.StageFetch, err)
	}

	// Transcribe through the provider gateway.
	transcribeStart := time.Now()
	result, err := p.Gateway.Transcribe(ctx, audio, mimeType)
	telemetry.TranscribeMs = time.Since(transcribeStart).Milliseconds()
	m.TranscribeDuration.Record(ctx, time.Since(transcribeStart).Seconds())
	if err != nil {
		m.RecordProviderError(ctx, "gateway", "stt")
		return p.fail(ctx, sess, session.StageTranscribe, err)
	}
	telemetry.Provider = result.Provider
	m.RecordProviderRequest(ctx, result.Provider, "stt", "ok")

	sess.FinalTranscript = result.Text
	if err := session.Advance(sess, store.StatusSynthesizing, time.Now()); err != nil {
		return p.fail(ctx, sess, session.StageTranscribe, err)
	}
	if err := p.Store.UpdateSession(ctx, sess); err != nil {
		return p.fail(ctx, sess, session.StageTranscribe, err)
	}
	log.Info("transcription complete", "provider", result.Provider, "chars", len(result.Text))

	// Assemble the context pack from a concurrent library snapshot.
	packStart := time.Now()
	pack, err := p.buildPack(ctx, sess)
	m.PackDuration.Record(ctx, time.Since(packStart).Seconds())
	if err != nil {
		return p.fail(ctx, sess, session.StageSynthesize, err)
	}

	// Synthesize. The orchestrator never errors: model failures degrade to
	// the heuristic extractor.
	synthStart := time.Now()
	synth := p.Orchestrator.Synthesize(ctx, sess.FinalTranscript, pack)
	telemetry.SynthesizeMs = time.Since(synthStart).Milliseconds()
	m.SynthesizeDuration.Record(ctx, time.Since(synthStart).Seconds())

	telemetry.Model = synth.Model
	telemetry.CostUSD = synth.CostUSD
	telemetry.Degraded = synth.Source != synthesis.SourceProvider
	if synth.CostUSD > 0 {
		m.RecordSynthesisCost(ctx, synth.Model, synth.CostUSD)
	}
	p.Guard.Check(sess.ID, synth.CostUSD)

	// Persist artifacts and move to review.
	recs := artifactRecords(sess.ID, synth.Artifacts, string(synth.Source), time.Now())
	if err := p.Store.ReplaceArtifacts(ctx, sess.ID, recs); err != nil {
		return p.fail(ctx, sess, session.StagePersist, err)
	}
	if err := session.Advance(sess, store.StatusReview, time.Now()); err != nil {
		return p.fail(ctx, sess, session.StagePersist, err)
	}
	sess.Telemetry = telemetry
	if err := p.Store.UpdateSession(ctx, sess); err != nil {
		return p.fail(ctx, sess, session.StagePersist, err)
	}

	// Telemetry patching is best-effort; the session already carries the
	// values from UpdateSession above, so a failure here is only logged.
	if err := p.Store.PatchTelemetry(ctx, sess.ID, telemetry); err != nil {
		log.Warn("telemetry patch failed", "error", err)
	}

	log.Info("session ready for review",
		"source", synth.Source,
		"artifacts", synth.Artifacts.Total(),
		"cost_usd", synth.CostUSD,
	)
	return nil
}

// fetchAudio resolves the session's blob reference and retrieves the audio
// through the validating fetcher.
func (p *Pipeline) fetchAudio(ctx context.Context, sess *store.Session) ([]byte, string, error) {
	if sess.AudioRef == "" {
		return nil, "", fmt.Errorf("pipeline: session %s has no audio reference", sess.ID)
	}
	rawURL, err := p.Blobs.ResolveURL(ctx, sess.AudioRef)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: resolve audio URL: %w", err)
	}
	return p.Fetcher.Fetch(ctx, rawURL)
}

// buildPack takes a concurrent snapshot of the owner's library and runs the
// packer over it. The note pool is semantically ranked against the transcript
// when an embedder is configured; embedding or search failures fall back to
// recency rather than failing the session.
func (p *Pipeline) buildPack(ctx context.Context, sess *store.Session) (*contextpack.Pack, error) {
	var (
		current *store.Book
		books   []store.Book
		notes   []store.Note
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := p.Store.GetBook(gctx, sess.BookID)
		if err != nil {
			return fmt.Errorf("pipeline: load current book: %w", err)
		}
		current = b
		return nil
	})
	g.Go(func() error {
		bs, err := p.Store.ListBooksByOwner(gctx, sess.OwnerID)
		if err != nil {
			return fmt.Errorf("pipeline: list books: %w", err)
		}
		books = bs
		return nil
	})
	g.Go(func() error {
		notes = p.candidateNotes(gctx, sess)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	others := make([]store.Book, 0, len(books))
	for _, b := range books {
		if b.ID != current.ID {
			others = append(others, b)
		}
	}

	return contextpack.Build(contextpack.Input{
		CurrentBook: *current,
		OtherBooks:  others,
		Notes:       notes,
	}, p.PackOptions), nil
}

// candidateNotes selects the note pool for packing. Preference order:
// semantic top-K against the final transcript, then recency. Both the
// embedding call and the vector search are allowed to fail quietly.
func (p *Pipeline) candidateNotes(ctx context.Context, sess *store.Session) []store.Note {
	log := observe.Logger(ctx).With("session", sess.ID)

	if p.Embedder != nil && sess.FinalTranscript != "" {
		vec, err := p.Embedder.Embed(ctx, sess.FinalTranscript)
		if err != nil {
			log.Warn("transcript embedding failed; using recency note order", "error", err)
		} else {
			notes, err := p.Store.SearchNotes(ctx, sess.OwnerID, vec, semanticTopK)
			if err != nil {
				log.Warn("semantic note search failed; using recency note order", "error", err)
			} else {
				return notes
			}
		}
	}

	notes, err := p.Store.ListNotesByOwner(ctx, sess.OwnerID)
	if err != nil {
		log.Warn("note listing failed; packing without notes", "error", err)
		return nil
	}
	return notes
}

// fail marks the session failed at stage, persists the record best-effort,
// and returns the original error.
func (p *Pipeline) fail(ctx context.Context, sess *store.Session, stage session.Stage, cause error) error {
	log := observe.Logger(ctx).With("session", sess.ID)
	session.MarkFailed(sess, stage, cause, time.Now())
	if err := p.Store.UpdateSession(ctx, sess); err != nil {
		log.Error("failed to persist session failure", "stage", stage, "error", err)
	}
	log.Error("pipeline stage failed", "stage", stage, "error", cause)
	return cause
}

// artifactRecords flattens the five artifact collections into ordered store
// records. Seq restarts per kind.
func artifactRecords(sessionID string, a synthesis.Artifacts, source string, now time.Time) []store.ArtifactRecord {
	var recs []store.ArtifactRecord
	add := func(kind store.ArtifactKind, seq int, title, content, src string) {
		if src == "" {
			src = source
		}
		recs = append(recs, store.ArtifactRecord{
			SessionID: sessionID,
			Kind:      kind,
			Seq:       seq,
			Title:     title,
			Content:   content,
			Source:    src,
			CreatedAt: now,
		})
	}

	for i, in := range a.Insights {
		add(store.ArtifactInsight, i+1, in.Title, in.Content, in.Source)
	}
	for i, q := range a.OpenQuestions {
		add(store.ArtifactOpenQuestion, i+1, "", q, "")
	}
	for i, q := range a.Quotes {
		add(store.ArtifactQuote, i+1, "", q.Text, "")
	}
	for i, q := range a.FollowUps {
		add(store.ArtifactFollowUp, i+1, "", q, "")
	}
	for i, e := range a.Expansions {
		add(store.ArtifactContextExpansion, i+1, e.Title, e.Content, e.Source)
	}
	return recs
}
