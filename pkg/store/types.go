package store

import "time"

// Status is the lifecycle state of a recording session. Transitions move
// forward through the listed order only, except for the unconditional edge
// to StatusFailed from any non-terminal state.
type Status string

const (
	StatusRecording    Status = "recording"
	StatusTranscribing Status = "transcribing"
	StatusSynthesizing Status = "synthesizing"
	StatusReview       Status = "review"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// statusOrder is the forward progression index for each non-failed status.
var statusOrder = map[Status]int{
	StatusRecording:    0,
	StatusTranscribing: 1,
	StatusSynthesizing: 2,
	StatusReview:       3,
	StatusComplete:     4,
}

// IsValid reports whether s is a recognised session status.
func (s Status) IsValid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransitionTo reports whether the edge s → next is legal: strictly
// forward through the lifecycle order, or to failed from any non-terminal
// state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, okFrom := statusOrder[s]
	to, okTo := statusOrder[next]
	return okFrom && okTo && to > from
}

// BookStatus buckets a library book by reading progress.
type BookStatus string

const (
	BookReading    BookStatus = "reading"
	BookFinished   BookStatus = "finished"
	BookWantToRead BookStatus = "want_to_read"
)

// Visibility controls whether a book's details may appear in model prompts
// and shared views.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Telemetry captures per-session pipeline measurements. Persisting it is
// best-effort: a failed telemetry patch never fails the surrounding request.
type Telemetry struct {
	// TranscribeMs is the STT gateway latency in milliseconds.
	TranscribeMs int64 `json:"transcribeMs"`

	// SynthesizeMs is the synthesis latency in milliseconds.
	SynthesizeMs int64 `json:"synthesizeMs"`

	// Provider is the STT provider that served the final transcript.
	Provider string `json:"provider"`

	// Model is the language model that served synthesis, if any.
	Model string `json:"model"`

	// CostUSD is the estimated synthesis spend.
	CostUSD float64 `json:"costUsd"`

	// Degraded marks artifacts produced by the heuristic fallback.
	Degraded bool `json:"degraded"`
}

// Session is one recording's lifecycle record.
type Session struct {
	ID      string
	OwnerID string
	BookID  string
	Status  Status

	// AudioRef is the blob-storage reference of the uploaded audio.
	AudioRef string

	// AudioMIME is the normalized content type of the uploaded audio.
	AudioMIME string

	// DurationSec is the client-reported recording length.
	DurationSec float64

	// CapReached marks recordings cut off at the client-side duration cap.
	CapReached bool

	// LiveTranscript is the client's best-effort on-device transcript snippet.
	LiveTranscript string

	// FinalTranscript is the provider transcript, set once transcription
	// completes.
	FinalTranscript string

	// RetryCount and LastRetryAt track failure recovery attempts.
	RetryCount  int
	LastRetryAt time.Time

	Telemetry Telemetry

	// FailedStage names the pipeline phase that failed. Set only when
	// Status is StatusFailed.
	FailedStage string

	// LastError is the message of the most recent failure.
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TranscriptSegment is one append-only live-transcript chunk. Segments are
// ordered by Seq within a session.
type TranscriptSegment struct {
	SessionID string
	Seq       int
	Text      string
	CreatedAt time.Time
}

// Book is a library entry.
type Book struct {
	ID          string
	OwnerID     string
	Title       string
	Author      string
	Description string
	Status      BookStatus
	Visibility  Visibility
	UpdatedAt   time.Time
}

// Public reports whether the book's details may be shared with a model prompt.
func (b Book) Public() bool { return b.Visibility == VisibilityPublic }

// Note is a reader note attached to a book.
type Note struct {
	ID        string
	OwnerID   string
	BookID    string
	Text      string
	CreatedAt time.Time

	// Embedding is the optional semantic vector used for relevance ranking.
	Embedding []float32
}

// ArtifactKind names one of the five synthesis output collections.
type ArtifactKind string

const (
	ArtifactInsight          ArtifactKind = "insight"
	ArtifactOpenQuestion     ArtifactKind = "open_question"
	ArtifactQuote            ArtifactKind = "quote"
	ArtifactFollowUp         ArtifactKind = "follow_up"
	ArtifactContextExpansion ArtifactKind = "context_expansion"
)

// ArtifactRecord is one persisted synthesis artifact.
type ArtifactRecord struct {
	SessionID string
	Kind      ArtifactKind
	Seq       int
	Title     string
	Content   string
	Source    string
	CreatedAt time.Time
}
