package session

import (
	"errors"
	"testing"
	"time"

	"github.com/quillreads/voicenotes/pkg/store"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestAdvance_TransitionMatrix(t *testing.T) {
	all := []store.Status{
		store.StatusRecording, store.StatusTranscribing, store.StatusSynthesizing,
		store.StatusReview, store.StatusComplete, store.StatusFailed,
	}
	order := map[store.Status]int{
		store.StatusRecording:    0,
		store.StatusTranscribing: 1,
		store.StatusSynthesizing: 2,
		store.StatusReview:       3,
		store.StatusComplete:     4,
	}

	for _, from := range all {
		for _, to := range all {
			s := &store.Session{ID: "s", Status: from}
			err := Advance(s, to, now)

			terminal := from == store.StatusComplete || from == store.StatusFailed
			var wantOK bool
			switch {
			case terminal:
				wantOK = false
			case to == store.StatusFailed:
				wantOK = true
			default:
				fi, ti := order[from], order[to]
				wantOK = ti > fi
			}

			if wantOK && err != nil {
				t.Errorf("Advance(%s → %s) = %v, want ok", from, to, err)
			}
			if !wantOK && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Advance(%s → %s) = %v, want ErrInvalidTransition", from, to, err)
			}
			if wantOK && (s.Status != to || !s.UpdatedAt.Equal(now)) {
				t.Errorf("Advance(%s → %s) did not update the session", from, to)
			}
		}
	}
}

func TestAdvance_UnknownStatus(t *testing.T) {
	s := &store.Session{Status: store.StatusRecording}
	if err := Advance(s, store.Status("bogus"), now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAcceptUpload(t *testing.T) {
	if err := AcceptUpload(&store.Session{Status: store.StatusRecording}); err != nil {
		t.Fatalf("recording session should accept upload: %v", err)
	}
	for _, status := range []store.Status{
		store.StatusTranscribing, store.StatusSynthesizing,
		store.StatusReview, store.StatusComplete, store.StatusFailed,
	} {
		if err := AcceptUpload(&store.Session{Status: status}); !errors.Is(err, ErrNotRecording) {
			t.Errorf("status %s: err = %v, want ErrNotRecording", status, err)
		}
	}
}

func TestMarkFailed_RecordsProvenance(t *testing.T) {
	s := &store.Session{ID: "s", Status: store.StatusTranscribing, RetryCount: 1}
	MarkFailed(s, StageTranscribe, errors.New("all providers down"), now)

	if s.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", s.Status)
	}
	if s.FailedStage != string(StageTranscribe) {
		t.Fatalf("failedStage = %q", s.FailedStage)
	}
	if s.LastError != "all providers down" {
		t.Fatalf("lastError = %q", s.LastError)
	}
	if s.RetryCount != 2 {
		t.Fatalf("retryCount = %d, want 2", s.RetryCount)
	}
	if !s.LastRetryAt.Equal(now) {
		t.Fatalf("lastRetryAt = %v", s.LastRetryAt)
	}
}

func TestMarkFailed_TerminalIsNoOp(t *testing.T) {
	s := &store.Session{ID: "s", Status: store.StatusComplete}
	MarkFailed(s, StagePersist, errors.New("late failure"), now)

	if s.Status != store.StatusComplete {
		t.Fatal("a terminal session must not be clobbered by a late failure")
	}
	if s.FailedStage != "" || s.LastError != "" {
		t.Fatal("no failure provenance may be written to a terminal session")
	}
}
