package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFromStatus_Taxonomy(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  Code
		wantRetry bool
	}{
		{401, CodeUnauthorized, false},
		{403, CodeUnauthorized, false},
		{429, CodeRateLimited, true},
		{413, CodeAudioTooLarge, false},
		{415, CodeUnsupportedFormat, false},
		{400, CodeProviderError, false},
		{404, CodeProviderError, false},
		{500, CodeProviderError, true},
		{503, CodeProviderError, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			e := ErrorFromStatus("deepgram", tt.status, "boom")
			if e.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Retryable != tt.wantRetry {
				t.Fatalf("retryable = %v, want %v", e.Retryable, tt.wantRetry)
			}
			if e.Provider != "deepgram" {
				t.Fatalf("provider = %q, want deepgram", e.Provider)
			}
		})
	}
}

func TestErrorFromStatus_TruncatesBody(t *testing.T) {
	e := ErrorFromStatus("elevenlabs", 500, strings.Repeat("x", 1000))
	if len(e.Message) > 250 {
		t.Fatalf("message length = %d, want truncated", len(e.Message))
	}
}

func TestErrorFromTransport(t *testing.T) {
	e := ErrorFromTransport("assemblyai", context.DeadlineExceeded)
	if e.Code != CodeTimeout {
		t.Fatalf("code = %q, want timeout", e.Code)
	}
	if !e.Retryable {
		t.Fatal("timeout should be retryable")
	}
	if !errors.Is(e, context.DeadlineExceeded) {
		t.Fatal("cause should unwrap to context.DeadlineExceeded")
	}

	e = ErrorFromTransport("assemblyai", errors.New("connection refused"))
	if e.Code != CodeNetworkError {
		t.Fatalf("code = %q, want network_error", e.Code)
	}
	if !e.Retryable {
		t.Fatal("network errors should be retryable")
	}
}

func TestCheckTranscript_EmptyAfterTrim(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		e, ok := CheckTranscript("deepgram", text)
		if ok {
			t.Fatalf("CheckTranscript(%q) ok = true, want false", text)
		}
		if e.Code != CodeEmptyTranscript {
			t.Fatalf("code = %q, want empty_transcript", e.Code)
		}
		if e.Retryable {
			t.Fatal("empty_transcript must not be retryable")
		}
	}

	if e, ok := CheckTranscript("deepgram", "hello"); !ok || e != nil {
		t.Fatalf("CheckTranscript(hello) = (%v, %v), want (nil, true)", e, ok)
	}
}

func TestAsError(t *testing.T) {
	orig := NewError("elevenlabs", CodeRateLimited, "slow down")
	wrapped := fmt.Errorf("outer: %w", orig)

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected to extract *Error from wrapped chain")
	}
	if e.Code != CodeRateLimited {
		t.Fatalf("code = %q, want rate_limited", e.Code)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Fatal("plain error should not extract as *Error")
	}
}
