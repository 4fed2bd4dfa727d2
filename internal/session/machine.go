// Package session enforces the recording-session lifecycle:
//
//	recording → transcribing → synthesizing → review → complete
//
// with an unconditional edge to failed from any non-terminal state. The
// machine mutates in-memory session records only; persistence is the caller's
// concern, which keeps every transition rule independently testable.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/quillreads/voicenotes/pkg/store"
)

// Stage names the pipeline phase recorded in FailedStage when a session
// fails.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageFetch      Stage = "fetch"
	StageTranscribe Stage = "transcribing"
	StageSynthesize Stage = "synthesizing"
	StagePersist    Stage = "persist"
)

// ErrInvalidTransition is wrapped by Advance when the requested edge is not
// legal from the session's current status.
var ErrInvalidTransition = errors.New("session: invalid transition")

// ErrNotRecording is returned by AcceptUpload when audio arrives for a
// session that is past the recording state, preventing duplicate or
// out-of-order audio writes.
var ErrNotRecording = errors.New("session: audio upload only allowed while recording")

// Advance moves s to next if the edge is legal and stamps UpdatedAt.
func Advance(s *store.Session, next store.Status, now time.Time) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// AcceptUpload validates that s may receive audio. Only a session still in
// the recording state accepts an upload.
func AcceptUpload(s *store.Session) error {
	if s.Status != store.StatusRecording {
		return fmt.Errorf("%w (status %s)", ErrNotRecording, s.Status)
	}
	return nil
}

// MarkFailed records failure provenance on s: the stage that failed, the
// cause, and the retry bookkeeping, then moves the session to failed. Calling
// MarkFailed on a terminal session is a no-op so late errors cannot clobber a
// completed record.
func MarkFailed(s *store.Session, stage Stage, cause error, now time.Time) {
	if s.Status.Terminal() {
		return
	}
	s.Status = store.StatusFailed
	s.FailedStage = string(stage)
	if cause != nil {
		s.LastError = cause.Error()
	}
	s.RetryCount++
	s.LastRetryAt = now
	s.UpdatedAt = now
}
