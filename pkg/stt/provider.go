// Package stt defines the Transcriber interface for batch Speech-to-Text
// backends and the shared error taxonomy every adapter translates into.
//
// A Transcriber wraps one remote transcription service (ElevenLabs Scribe,
// Deepgram Nova batch, AssemblyAI Universal batch) and exposes a uniform
// one-shot interface: audio bytes in, final transcript out. Reading sessions
// are recorded and uploaded as a whole, so there is no streaming surface here —
// adapters that talk to multi-step APIs (upload, submit, poll) hide that
// protocol behind the same call.
//
// Implementations must be safe for concurrent use and must honour context
// cancellation on every outbound request.
package stt

import "context"

// Result is a completed transcription.
type Result struct {
	// Text is the full transcript, as returned by the provider.
	Text string

	// Provider is the adapter name that produced the result (e.g. "deepgram").
	Provider string

	// ModelID is the provider-side model that served the request, when the
	// provider reports one.
	ModelID string

	// DurationSec is the audio duration in seconds, when the provider reports it.
	DurationSec float64
}

// Transcriber is the abstraction over any batch STT backend.
//
// Transcribe submits the complete audio payload and blocks until the provider
// returns a final transcript or a classified error. mimeType is the declared
// content type of the audio (e.g. "audio/webm"); adapters forward or translate
// it as their wire format requires.
//
// Errors returned by Transcribe are always of type *Error so that callers can
// inspect the code and retryability without knowing the provider's wire format.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)
}
