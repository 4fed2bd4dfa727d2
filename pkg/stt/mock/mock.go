// Package mock provides a scripted stt.Transcriber for tests.
package mock

import (
	"context"
	"sync"

	"github.com/quillreads/voicenotes/pkg/stt"
)

// Transcriber is a scripted mock. Set Result/Err to control the outcome, or
// TranscribeFunc for per-call behaviour. All fields are read under a mutex so
// the mock is safe for concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned when Err is nil and TranscribeFunc is unset.
	Result *stt.Result

	// Err is returned when non-nil and TranscribeFunc is unset.
	Err error

	// TranscribeFunc, when set, overrides Result/Err entirely.
	TranscribeFunc func(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error)

	// Calls records the audio sizes and MIME types of every invocation.
	Calls []Call
}

// Call captures one Transcribe invocation.
type Call struct {
	AudioLen int
	MimeType string
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe implements stt.Transcriber.
func (m *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, Call{AudioLen: len(audio), MimeType: mimeType})
	fn := m.TranscribeFunc
	res, err := m.Result, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio, mimeType)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CallCount returns how many times Transcribe has been invoked.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
