// Package gateway routes one transcription request across the configured STT
// providers. It builds an ordered, de-duplicated candidate list from the
// fallback policy, skips providers that are kill-switched or missing a
// credential, and tries the rest strictly in sequence: the first success wins
// and no provider is ever revisited within a single call. Only when every
// candidate has been skipped or has failed does the gateway surface a single
// aggregate error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillreads/voicenotes/internal/config"
	"github.com/quillreads/voicenotes/pkg/stt"
)

// ErrNoProviders is returned when the policy yields no usable candidate.
var ErrNoProviders = errors.New("gateway: no usable STT provider")

// Factory constructs a transcriber for one provider. Construction may fail
// (e.g. missing credential); the gateway logs and skips such providers.
type Factory func() (stt.Transcriber, error)

// Gateway fans one transcription request across providers per the fallback
// policy. It is safe for concurrent use: all mutable per-call state lives on
// the stack, and the status function is read once per provider per call.
type Gateway struct {
	policy    config.FallbackPolicy
	status    func(name string) config.ProviderStatus
	factories map[string]Factory
}

// New creates a Gateway. status is consulted per call so operator kill-switch
// changes take effect without a restart; factories maps provider names to
// constructors.
func New(policy config.FallbackPolicy, status func(string) config.ProviderStatus, factories map[string]Factory) *Gateway {
	return &Gateway{policy: policy, status: status, factories: factories}
}

// Attempt records the failure of one provider within a gateway call.
type Attempt struct {
	Provider string
	Err      error
}

// AggregateError is raised when every candidate provider fails. It identifies
// the policy's primary provider and concatenates every attempt's message.
type AggregateError struct {
	// Primary is the policy's first-choice provider.
	Primary string

	// Attempts lists each failed provider in the order it was tried.
	Attempts []Attempt
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		msgs[i] = a.Err.Error()
	}
	return fmt.Sprintf("gateway: all STT providers failed (primary %s): %s",
		e.Primary, strings.Join(msgs, "; "))
}

// Transcribe tries each usable candidate in policy order and returns the first
// successful result. Skipped providers (kill-switched, unconfigured, or
// failing construction) are logged and do not count as attempts in the
// aggregate error unless construction itself failed.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	candidates := g.policy.Candidates()
	agg := &AggregateError{Primary: g.policy.Primary}

	for _, name := range candidates {
		switch st := g.status(name); st {
		case config.StatusDisabled:
			slog.Info("skipping STT provider (kill switch)", "provider", name)
			continue
		case config.StatusUnconfigured:
			slog.Info("skipping STT provider (no credential)", "provider", name)
			continue
		case config.StatusReady:
		default:
			slog.Warn("skipping STT provider (unknown status)", "provider", name, "status", st)
			continue
		}

		factory, ok := g.factories[name]
		if !ok {
			slog.Warn("skipping STT provider (no factory registered)", "provider", name)
			continue
		}

		transcriber, err := factory()
		if err != nil {
			slog.Warn("skipping STT provider (construction failed)", "provider", name, "error", err)
			agg.Attempts = append(agg.Attempts, Attempt{Provider: name, Err: err})
			continue
		}

		result, err := transcriber.Transcribe(ctx, audio, mimeType)
		if err == nil {
			slog.Debug("STT provider succeeded", "provider", name, "chars", len(result.Text))
			return result, nil
		}

		slog.Warn("STT provider failed, trying next", "provider", name, "error", err)
		agg.Attempts = append(agg.Attempts, Attempt{Provider: name, Err: err})
	}

	if len(agg.Attempts) == 0 {
		return nil, fmt.Errorf("%w (policy: primary=%s secondary=%s)",
			ErrNoProviders, g.policy.Primary, g.policy.Secondary)
	}
	return nil, agg
}
