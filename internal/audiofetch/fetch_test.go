package audiofetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	f := New([]string{"blob.example.com", ".cdn.example.org", "127.0.0.1"}, 1<<20)

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"exact host", "https://blob.example.com/audio/1", nil},
		{"subdomain match", "https://eu.cdn.example.org/a", nil},
		{"apex of dotted entry", "https://cdn.example.org/a", nil},
		{"case insensitive", "https://BLOB.Example.COM/a", nil},
		{"untrusted host", "https://evil.example.net/a", ErrUntrustedHost},
		{"suffix trick", "https://notblob.example.com.evil.net/a", ErrUntrustedHost},
		{"file scheme", "file:///etc/passwd", ErrSchemeNotAllowed},
		{"gopher scheme", "gopher://blob.example.com/", ErrSchemeNotAllowed},
		{"internal metadata", "http://169.254.169.254/latest", ErrUntrustedHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ValidateURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mp4; codecs=mp4a")
		w.Write([]byte("audio payload"))
	}))
	defer srv.Close()

	f := New([]string{"127.0.0.1"}, 1<<20)
	data, mimeType, err := f.Fetch(context.Background(), srv.URL+"/a.m4a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "audio payload" {
		t.Fatalf("data = %q", data)
	}
	if mimeType != "audio/mp4" {
		t.Fatalf("mime = %q, want audio/mp4 (params stripped)", mimeType)
	}
}

func TestFetch_DeclaredTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := New([]string{"127.0.0.1"}, 10)
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("error = %v, want ErrTooLarge", err)
	}
}

func TestFetch_BodyExceedsCapWithLyingLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked transfer hides the real length from the pre-check.
		flusher := w.(http.Flusher)
		for range 20 {
			w.Write([]byte("0123456789"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	f := New([]string{"127.0.0.1"}, 50)
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("error = %v, want ErrTooLarge", err)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := New([]string{"127.0.0.1"}, 1<<20)
	_, _, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("error = %v, want ErrEmptyAudio", err)
	}
}

func TestNormalizeMIME(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"audio/webm", "audio/webm"},
		{"audio/mp4; codecs=mp4a.40.2", "audio/mp4"},
		{"AUDIO/WAV", "audio/wav"},
		{"text/html", DefaultMIME},
		{"", DefaultMIME},
		{"application/octet-stream", DefaultMIME},
	}
	for _, tt := range tests {
		if got := NormalizeMIME(tt.in); got != tt.want {
			t.Errorf("NormalizeMIME(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
