// Package deepgram provides a Deepgram-backed STT provider using the batch
// (pre-recorded) listen API. It implements the stt.Transcriber interface.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quillreads/voicenotes/pkg/stt"
)

const (
	// ProviderName identifies this adapter in results and errors.
	ProviderName = "deepgram"

	defaultBaseURL  = "https://api.deepgram.com"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
	defaultTimeout  = 25 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g. "en", "de").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithBaseURL overrides the API base URL. Used by tests.
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

// Provider implements stt.Transcriber backed by the Deepgram batch API.
type Provider struct {
	apiKey   string
	model    string
	language string
	baseURL  string
	timeout  time.Duration
	client   *http.Client
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		baseURL:  defaultBaseURL,
		timeout:  defaultTimeout,
		client:   http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the subset of the Deepgram pre-recorded response this
// adapter consumes.
type listenResponse struct {
	Metadata struct {
		Duration float64  `json:"duration"`
		Models   []string `json:"models"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts the raw audio body to the listen endpoint and returns the
// final transcript. It implements stt.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint, err := p.buildURL()
	if err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build URL: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, stt.ErrorFromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, stt.ErrorFromTransport(ProviderName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, stt.ErrorFromStatus(ProviderName, resp.StatusCode, string(body))
	}

	var lr listenResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("decode response: %v", err))
	}

	var text string
	if len(lr.Results.Channels) > 0 && len(lr.Results.Channels[0].Alternatives) > 0 {
		text = lr.Results.Channels[0].Alternatives[0].Transcript
	}
	if e, ok := stt.CheckTranscript(ProviderName, text); !ok {
		return nil, e
	}

	return &stt.Result{
		Text:        text,
		Provider:    ProviderName,
		ModelID:     p.model,
		DurationSec: lr.Metadata.Duration,
	}, nil
}

// buildURL constructs the listen endpoint URL with model and formatting
// parameters.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.baseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
