// Package audiofetch retrieves uploaded audio from trusted hosts and
// enforces the ingestion limits: http(s)-only schemes, an explicit host
// allow-list checked before any connection is made (SSRF guard), and a byte
// cap enforced both against the declared Content-Length and again while
// reading.
package audiofetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMIME is assigned when the response carries no recognisable audio
// content type.
const DefaultMIME = "audio/webm"

// Validation failures. All map to client-errors at the API layer.
var (
	ErrSchemeNotAllowed = errors.New("audiofetch: only http and https URLs are allowed")
	ErrUntrustedHost    = errors.New("audiofetch: host is not on the trust allow-list")
	ErrTooLarge         = errors.New("audiofetch: audio exceeds the maximum byte size")
	ErrEmptyAudio       = errors.New("audiofetch: audio payload is empty")
)

// knownMIMEs are the audio content types passed through unchanged; anything
// else normalizes to DefaultMIME.
var knownMIMEs = map[string]bool{
	"audio/webm":  true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/ogg":   true,
	"audio/flac":  true,
}

// Fetcher retrieves audio blobs with validation.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	trustedHosts []string
}

// Option is a functional option for Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the per-fetch timeout. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// New creates a Fetcher. trustedHosts entries match exactly, or any subdomain
// when prefixed with "." (".blob.example.com"). maxBytes must be positive.
func New(trustedHosts []string, maxBytes int64, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxBytes:     maxBytes,
		trustedHosts: trustedHosts,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ValidateURL vets rawURL before any connection is made: scheme must be
// http(s) and the host must be on the trust allow-list.
func (f *Fetcher) ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("audiofetch: parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w, got %q", ErrSchemeNotAllowed, u.Scheme)
	}
	if !f.hostTrusted(u.Hostname()) {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedHost, u.Hostname())
	}
	return u, nil
}

// Fetch retrieves the audio at rawURL, enforcing the size cap against the
// declared length before reading and against the actual bytes after. The
// returned MIME type is normalized, defaulting to DefaultMIME.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (data []byte, mimeType string, err error) {
	u, err := f.ValidateURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("audiofetch: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("audiofetch: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("audiofetch: unexpected status %d fetching audio", resp.StatusCode)
	}

	// Pre-check the declared length so oversized payloads are rejected
	// without reading them.
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	// Stream with a one-byte margin so a lying Content-Length is still
	// caught after the read.
	data, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("audiofetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: body exceeded %d bytes", ErrTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyAudio
	}

	return data, NormalizeMIME(resp.Header.Get("Content-Type")), nil
}

// hostTrusted reports whether host matches the allow-list: exact match, or
// dot-prefixed suffix match for subdomains.
func (f *Fetcher) hostTrusted(host string) bool {
	host = strings.ToLower(host)
	for _, trusted := range f.trustedHosts {
		trusted = strings.ToLower(trusted)
		if strings.HasPrefix(trusted, ".") {
			if strings.HasSuffix(host, trusted) || host == strings.TrimPrefix(trusted, ".") {
				return true
			}
			continue
		}
		if host == trusted {
			return true
		}
	}
	return false
}

// NormalizeMIME strips parameters from a Content-Type header and maps
// unknown or absent types to DefaultMIME.
func NormalizeMIME(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if knownMIMEs[mimeType] {
		return mimeType
	}
	return DefaultMIME
}
