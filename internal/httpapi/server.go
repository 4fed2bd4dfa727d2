// Package httpapi exposes the voicenotes HTTP surface: audio upload and
// retrieval for recording sessions, direct transcript synthesis, health, and
// Prometheus metrics. Handlers authenticate via the X-Owner-ID header set by
// the fronting auth proxy; this service never sees end-user credentials.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillreads/voicenotes/internal/audiofetch"
	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/internal/guardrail"
	"github.com/quillreads/voicenotes/internal/observe"
	"github.com/quillreads/voicenotes/internal/pipeline"
	"github.com/quillreads/voicenotes/internal/synthesis"
	"github.com/quillreads/voicenotes/pkg/store"
)

// ownerHeader carries the authenticated owner id, injected by the upstream
// auth layer.
const ownerHeader = "X-Owner-ID"

// Entitlements gates paid model calls. Allow returns nil when ownerID may
// spend; any error is surfaced as 429 before a model is contacted.
type Entitlements interface {
	Allow(ctx context.Context, ownerID string) error
}

// ErrorReporter receives unexpected handler failures with routing tags. The
// production sink is the operator's error tracker; the default logs via slog.
type ErrorReporter interface {
	Report(ctx context.Context, route, sessionID, ownerID string, err error)
}

type slogReporter struct{}

func (slogReporter) Report(ctx context.Context, route, sessionID, ownerID string, err error) {
	observe.Logger(ctx).Error("unhandled API error",
		"route", route,
		"session", sessionID,
		"owner", ownerID,
		"error", err,
	)
}

// Server holds the handler dependencies. All fields except Entitlements,
// Reporter, and Metrics are required.
type Server struct {
	Store        store.Store
	Blobs        store.BlobStore
	Fetcher      *audiofetch.Fetcher
	Pipeline     *pipeline.Pipeline
	Orchestrator *synthesis.Orchestrator
	Guard        *guardrail.Monitor

	// MaxAudioBytes caps the upload body size.
	MaxAudioBytes int64

	// PackOptions tunes context packing on the direct synthesis endpoint.
	PackOptions contextpack.Options

	// Entitlements gates paid synthesis. Nil allows everyone.
	Entitlements Entitlements

	// Reporter receives unexpected failures. Nil falls back to slog.
	Reporter ErrorReporter

	// Metrics instruments the HTTP middleware. Nil uses the package default.
	Metrics *observe.Metrics
}

// Handler builds the routed, instrumented handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions/{id}/audio", s.handleUploadAudio)
	mux.HandleFunc("GET /api/sessions/{id}/audio", s.handleGetAudio)
	mux.HandleFunc("POST /api/synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	m := s.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return observe.Middleware(m)(s.recoverer(mux))
}

// recoverer converts handler panics into reported generic 500s.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = &panicError{value: rec}
				}
				s.report(r, err)
				s.writeError(w, r, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type panicError struct{ value any }

func (e *panicError) Error() string {
	return "panic: " + slog.AnyValue(e.value).String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// report forwards err to the configured sink with routing tags.
func (s *Server) report(r *http.Request, err error) {
	reporter := s.Reporter
	if reporter == nil {
		reporter = slogReporter{}
	}
	reporter.Report(r.Context(), r.Method+" "+r.URL.Path, r.PathValue("id"), owner(r), err)
}

// owner extracts the authenticated owner id, empty when unauthenticated.
func owner(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}

// correlationID returns the request's trace id, or a fresh UUID when the
// request carries no recording span.
func correlationID(ctx context.Context) string {
	if id := observe.CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// errorBody is the uniform 4xx/5xx response shape.
type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, CorrelationID: correlationID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
