package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code classifies a transcription failure independently of the provider that
// produced it. Adapters translate their wire-level failures into exactly one
// of these values.
type Code string

const (
	// CodeUnauthorized means the provider rejected the credential (401/403).
	CodeUnauthorized Code = "unauthorized"

	// CodeRateLimited means the provider throttled the request (429).
	CodeRateLimited Code = "rate_limited"

	// CodeAudioTooLarge means the payload exceeded the provider's size limit (413).
	CodeAudioTooLarge Code = "audio_too_large"

	// CodeUnsupportedFormat means the provider rejected the audio encoding (415).
	CodeUnsupportedFormat Code = "unsupported_format"

	// CodeEmptyTranscript means the provider succeeded but returned no speech.
	CodeEmptyTranscript Code = "empty_transcript"

	// CodeTimeout means the call (or poll deadline) expired before a result.
	CodeTimeout Code = "timeout"

	// CodeNetworkError means the request failed below the HTTP layer.
	CodeNetworkError Code = "network_error"

	// CodeProviderError is the catch-all for provider-side failures.
	CodeProviderError Code = "provider_error"
)

// Error is the typed failure every adapter returns. It carries the taxonomy
// code, the provider that failed, and whether a later attempt against the
// same provider could plausibly succeed.
type Error struct {
	// Code is the taxonomy classification.
	Code Code

	// Provider names the adapter that produced the error.
	Provider string

	// Retryable reports whether retrying the same provider may help.
	Retryable bool

	// Message is a short human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error with the default retryability for code:
// only rate_limited, timeout, and network_error are retryable by default.
func NewError(provider string, code Code, message string) *Error {
	return &Error{
		Code:      code,
		Provider:  provider,
		Retryable: code == CodeRateLimited || code == CodeTimeout || code == CodeNetworkError,
		Message:   message,
	}
}

// ErrorFromStatus maps an HTTP status code from a provider response to a
// classified *Error:
//
//	401, 403 → unauthorized
//	429      → rate_limited (retryable)
//	413      → audio_too_large
//	415      → unsupported_format
//	other    → provider_error, retryable iff status ≥ 500
func ErrorFromStatus(provider string, status int, body string) *Error {
	body = strings.TrimSpace(body)
	const maxBody = 200
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	msg := fmt.Sprintf("http %d: %s", status, body)

	switch status {
	case 401, 403:
		return NewError(provider, CodeUnauthorized, msg)
	case 429:
		return NewError(provider, CodeRateLimited, msg)
	case 413:
		return NewError(provider, CodeAudioTooLarge, msg)
	case 415:
		return NewError(provider, CodeUnsupportedFormat, msg)
	default:
		e := NewError(provider, CodeProviderError, msg)
		e.Retryable = status >= 500
		return e
	}
}

// ErrorFromTransport classifies a transport-level failure: context deadline
// expiry becomes timeout, everything else network_error. Both are retryable.
func ErrorFromTransport(provider string, err error) *Error {
	code := CodeNetworkError
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeTimeout
	}
	e := NewError(provider, code, err.Error())
	e.Err = err
	return e
}

// CheckTranscript validates a provider-reported transcript. A transcript that
// is empty after trimming whitespace is a non-retryable empty_transcript error.
func CheckTranscript(provider, text string) (*Error, bool) {
	if strings.TrimSpace(text) == "" {
		return NewError(provider, CodeEmptyTranscript, "provider returned an empty transcript"), false
	}
	return nil, true
}

// AsError extracts the typed *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
