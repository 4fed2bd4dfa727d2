// Package assemblyai provides an AssemblyAI-backed STT provider using the
// asynchronous batch API: upload the audio, submit a transcription job, then
// poll the job until it reaches a terminal state. It implements the
// stt.Transcriber interface.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quillreads/voicenotes/pkg/stt"
)

const (
	// ProviderName identifies this adapter in results and errors.
	ProviderName = "assemblyai"

	defaultBaseURL      = "https://api.assemblyai.com"
	defaultUploadWait   = 30 * time.Second
	defaultPollWait     = 10 * time.Second
	defaultPollInterval = 1500 * time.Millisecond
	defaultPollDeadline = 60 * time.Second
)

// Terminal job statuses reported by the transcript endpoint.
const (
	statusCompleted = "completed"
	statusError     = "error"
)

// Option is a functional option for configuring the AssemblyAI Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithPollInterval sets the fixed delay between job status polls.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollInterval = d }
}

// WithPollDeadline sets the overall deadline for the poll loop, measured from
// job submission.
func WithPollDeadline(d time.Duration) Option {
	return func(p *Provider) { p.pollDeadline = d }
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements stt.Transcriber backed by the AssemblyAI async API.
type Provider struct {
	apiKey       string
	baseURL      string
	uploadWait   time.Duration
	pollWait     time.Duration
	pollInterval time.Duration
	pollDeadline time.Duration
	client       *http.Client
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*Provider)(nil)

// New creates a new AssemblyAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		uploadWait:   defaultUploadWait,
		pollWait:     defaultPollWait,
		pollInterval: defaultPollInterval,
		pollDeadline: defaultPollDeadline,
		client:       http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptJob struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Text         string  `json:"text"`
	Error        string  `json:"error"`
	AudioDuration float64 `json:"audio_duration"`
}

// Transcribe runs the three-step protocol: upload audio for a handle, submit
// a transcription job, then poll at a fixed interval until the job completes,
// errors, or the poll deadline expires. It implements stt.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	uploadURL, err := p.upload(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}

	jobID, err := p.submit(ctx, uploadURL)
	if err != nil {
		return nil, err
	}

	return p.poll(ctx, jobID)
}

// upload pushes the raw audio bytes and returns the provider-side handle URL.
func (p *Provider) upload(ctx context.Context, audio []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.uploadWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build upload request: %v", err))
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", mimeType)

	var ur uploadResponse
	if err := p.doJSON(req, &ur); err != nil {
		return "", err
	}
	if ur.UploadURL == "" {
		return "", stt.NewError(ProviderName, stt.CodeProviderError, "upload response missing upload_url")
	}
	return ur.UploadURL, nil
}

// submit creates the transcription job for a previously uploaded handle.
func (p *Provider) submit(ctx context.Context, uploadURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.pollWait)
	defer cancel()

	payload, _ := json.Marshal(map[string]string{"audio_url": uploadURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build submit request: %v", err))
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var job transcriptJob
	if err := p.doJSON(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", stt.NewError(ProviderName, stt.CodeProviderError, "submit response missing job id")
	}
	return job.ID, nil
}

// poll fetches the job status at a fixed interval until a terminal state or
// the overall poll deadline. A terminal "error" status maps to a non-retryable
// provider_error; deadline expiry maps to timeout.
func (p *Provider) poll(ctx context.Context, jobID string) (*stt.Result, error) {
	deadline := time.NewTimer(p.pollDeadline)
	defer deadline.Stop()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, stt.ErrorFromTransport(ProviderName, ctx.Err())
		case <-deadline.C:
			e := stt.NewError(ProviderName, stt.CodeTimeout,
				fmt.Sprintf("job %s did not finish within %s", jobID, p.pollDeadline))
			return nil, e
		case <-ticker.C:
		}

		job, err := p.fetchJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case statusCompleted:
			if e, ok := stt.CheckTranscript(ProviderName, job.Text); !ok {
				return nil, e
			}
			return &stt.Result{
				Text:        job.Text,
				Provider:    ProviderName,
				DurationSec: job.AudioDuration,
			}, nil
		case statusError:
			e := stt.NewError(ProviderName, stt.CodeProviderError, job.Error)
			e.Retryable = false
			return nil, e
		default:
			// queued or processing; keep polling.
		}
	}
}

// fetchJob performs one status poll with its own per-request timeout.
func (p *Provider) fetchJob(ctx context.Context, jobID string) (*transcriptJob, error) {
	ctx, cancel := context.WithTimeout(ctx, p.pollWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("build poll request: %v", err))
	}
	req.Header.Set("Authorization", p.apiKey)

	var job transcriptJob
	if err := p.doJSON(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// doJSON executes req, maps HTTP and transport failures into the taxonomy,
// and decodes a 2xx body into out.
func (p *Provider) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return stt.ErrorFromTransport(ProviderName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return stt.ErrorFromTransport(ProviderName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return stt.ErrorFromStatus(ProviderName, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return stt.NewError(ProviderName, stt.CodeProviderError, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}
