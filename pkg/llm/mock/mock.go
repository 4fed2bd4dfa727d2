// Package mock provides a scripted llm.Client for tests.
package mock

import (
	"context"
	"sync"

	"github.com/quillreads/voicenotes/pkg/llm"
)

// Client is a scripted mock. Set Response/Err for a fixed outcome, or
// CompleteFunc for per-call behaviour.
type Client struct {
	mu sync.Mutex

	// Response is returned when Err is nil and CompleteFunc is unset.
	Response *llm.Response

	// Err is returned when non-nil and CompleteFunc is unset.
	Err error

	// CompleteFunc, when set, overrides Response/Err entirely.
	CompleteFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

	// Requests records every request received.
	Requests []llm.Request
}

// Compile-time interface assertion.
var _ llm.Client = (*Client)(nil)

// Complete implements llm.Client.
func (m *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.CompleteFunc
	resp, err := m.Response, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CallCount returns how many times Complete has been invoked.
func (m *Client) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
