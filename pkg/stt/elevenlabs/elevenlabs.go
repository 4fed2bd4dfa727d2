// Package elevenlabs provides an ElevenLabs Scribe-backed STT provider using
// the single-call speech-to-text REST API. It implements the stt.Transcriber
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/quillreads/voicenotes/pkg/stt"
)

const (
	// ProviderName identifies this adapter in results and errors.
	ProviderName = "elevenlabs"

	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "scribe_v1"
	defaultTimeout = 25 * time.Second
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the Scribe model id (e.g. "scribe_v1").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL. Used by tests to point the adapter
// at an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithTimeout sets the per-call timeout. The default is 25 seconds.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements stt.Transcriber backed by the ElevenLabs Scribe API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		client:  http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// scribeResponse is the subset of the ElevenLabs speech-to-text response this
// adapter consumes.
type scribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language_code"`
	Duration float64 `json:"duration_seconds"`
}

// Transcribe sends the audio as a multipart upload and returns the final
// transcript. It implements stt.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "audio"+extensionFor(mimeType))
	if err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build multipart: %v", err))
	}
	if _, err := part.Write(audio); err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("write multipart: %v", err))
	}
	if err := mw.WriteField("model_id", p.model); err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("write model_id: %v", err))
	}
	if err := mw.Close(); err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("close multipart: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, stt.ErrorFromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, stt.ErrorFromTransport(ProviderName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, stt.ErrorFromStatus(ProviderName, resp.StatusCode, string(body))
	}

	var sr scribeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("decode response: %v", err))
	}

	if e, ok := stt.CheckTranscript(ProviderName, sr.Text); !ok {
		return nil, e
	}

	return &stt.Result{
		Text:        sr.Text,
		Provider:    ProviderName,
		ModelID:     p.model,
		DurationSec: sr.Duration,
	}, nil
}

// extensionFor picks a filename extension for the multipart part. ElevenLabs
// sniffs content but rejects uploads without a recognisable filename.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	default:
		return ".webm"
	}
}
