// Package blob implements [store.BlobStore] against a plain HTTP object
// service: audio is written with a PUT to {base}/{ref} and references resolve
// back to the same URL. The service behind the base URL is expected to sit on
// the audio trust allow-list.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillreads/voicenotes/pkg/store"
)

var _ store.BlobStore = (*HTTPStore)(nil)

// HTTPStore stores audio blobs in an HTTP object service.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option is a functional option for HTTPStore.
type Option func(*HTTPStore)

// WithAuthToken sets a bearer token sent on every write.
func WithAuthToken(token string) Option {
	return func(s *HTTPStore) { s.token = token }
}

// WithHTTPClient replaces the HTTP client. The default has a 30 second
// timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPStore) { s.client = c }
}

// NewHTTP creates an HTTPStore writing under baseURL.
func NewHTTP(baseURL string, opts ...Option) (*HTTPStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("blob: base URL is required")
	}
	s := &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Put implements [store.BlobStore]. References are owner-scoped with a random
// suffix, so a reference never collides and never leaks another owner's path.
func (s *HTTPStore) Put(ctx context.Context, ownerID string, data []byte, mimeType string) (string, error) {
	ref := ownerID + "/" + uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/"+ref, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("blob: build request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: put: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("blob: put returned status %d", resp.StatusCode)
	}
	return ref, nil
}

// ResolveURL implements [store.BlobStore].
func (s *HTTPStore) ResolveURL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", store.ErrNotFound
	}
	return s.baseURL + "/" + ref, nil
}
