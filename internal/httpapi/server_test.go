package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quillreads/voicenotes/internal/audiofetch"
	"github.com/quillreads/voicenotes/internal/config"
	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/internal/gateway"
	"github.com/quillreads/voicenotes/internal/guardrail"
	"github.com/quillreads/voicenotes/internal/pipeline"
	"github.com/quillreads/voicenotes/internal/synthesis"
	"github.com/quillreads/voicenotes/pkg/store"
	storemock "github.com/quillreads/voicenotes/pkg/store/mock"
	"github.com/quillreads/voicenotes/pkg/stt"
	sttmock "github.com/quillreads/voicenotes/pkg/stt/mock"
)

// fixture wires a Server against in-memory doubles and an httptest blob host.
type fixture struct {
	store  *storemock.Store
	blobs  *storemock.BlobStore
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := storemock.NewStore()
	blobs := storemock.NewBlobStore("")

	blobHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/")
		data, ok := blobs.Blobs[ref]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", blobs.MIMEs[ref])
		w.Write(data)
	}))
	t.Cleanup(blobHost.Close)
	blobs.BaseURL = blobHost.URL

	fetcher := audiofetch.New([]string{"127.0.0.1"}, 1<<20)
	orch := synthesis.New(nil, synthesis.Config{})
	guard := guardrail.New(0.10, 0.50, slog.New(slog.NewTextHandler(io.Discard, nil)))

	transcriber := &sttmock.Transcriber{Result: &stt.Result{Text: "a transcript", Provider: "elevenlabs"}}
	gw := gateway.New(
		config.FallbackPolicy{Primary: "elevenlabs"},
		func(string) config.ProviderStatus { return config.StatusReady },
		map[string]gateway.Factory{
			"elevenlabs": func() (stt.Transcriber, error) { return transcriber, nil },
		},
	)

	srv := &Server{
		Store:   st,
		Blobs:   blobs,
		Fetcher: fetcher,
		Pipeline: &pipeline.Pipeline{
			Store:        st,
			Blobs:        blobs,
			Fetcher:      fetcher,
			Gateway:      gw,
			Orchestrator: orch,
			Guard:        guard,
			PackOptions:  contextpack.Options{TokenBudget: 2000},
		},
		Orchestrator:  orch,
		Guard:         guard,
		MaxAudioBytes: 1 << 20,
		PackOptions:   contextpack.Options{TokenBudget: 2000},
	}
	return &fixture{store: st, blobs: blobs, server: srv}
}

func (f *fixture) seedSession(t *testing.T, status store.Status) *store.Session {
	t.Helper()
	sess := &store.Session{
		ID:      "sess-1",
		OwnerID: "owner-1",
		BookID:  "book-1",
		Status:  status,
	}
	if err := f.store.CreateSession(t.Context(), sess); err != nil {
		t.Fatal(err)
	}
	f.store.Books["book-1"] = &store.Book{
		ID: "book-1", OwnerID: "owner-1", Title: "The Letters", Author: "A. Writer",
		Visibility: store.VisibilityPublic, UpdatedAt: time.Now(),
	}
	return sess
}

func doRequest(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func uploadRequest(ownerID string, body []byte) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/sessions/sess-1/audio", bytes.NewReader(body))
	r.Header.Set("Content-Type", "audio/webm")
	if ownerID != "" {
		r.Header.Set("X-Owner-ID", ownerID)
	}
	return r
}

// waitForStatus polls the mock store until the session leaves transcribing or
// the deadline passes; the pipeline runs on its own goroutine after a 202.
func (f *fixture) waitForStatus(t *testing.T, id string, want store.Status) *store.Session {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := f.store.GetSession(t.Context(), id)
		if err != nil {
			t.Fatal(err)
		}
		if sess.Status == want || sess.Status.Terminal() {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached %s", id, want)
	return nil
}

func TestUploadAudio_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)
	h := f.server.Handler()

	r := uploadRequest("owner-1", []byte("fake-audio"))
	r.Header.Set("X-Audio-Duration", "12.5")
	r.Header.Set("X-Cap-Reached", "true")
	r.Header.Set("X-Live-Transcript", "rough on-device words")
	w := doRequest(h, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["sessionId"] != "sess-1" || resp["status"] != "transcribing" {
		t.Fatalf("resp = %v", resp)
	}

	sess := f.waitForStatus(t, "sess-1", store.StatusReview)
	if sess.Status != store.StatusReview {
		t.Fatalf("status = %s (failedStage %q, lastError %q)", sess.Status, sess.FailedStage, sess.LastError)
	}
	if sess.AudioRef == "" || sess.AudioMIME != "audio/webm" {
		t.Fatalf("audioRef = %q, audioMIME = %q", sess.AudioRef, sess.AudioMIME)
	}
	if sess.DurationSec != 12.5 || !sess.CapReached {
		t.Fatalf("durationSec = %v, capReached = %v", sess.DurationSec, sess.CapReached)
	}
	segs, _ := f.store.ListSegments(t.Context(), "sess-1")
	if len(segs) != 1 || segs[0].Text != "rough on-device words" {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestUploadAudio_MissingOwnerIs401(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	w := doRequest(f.server.Handler(), uploadRequest("", []byte("data")))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.CorrelationID == "" {
		t.Fatal("error bodies must carry a correlation id")
	}
}

func TestUploadAudio_WrongOwnerIs403(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	w := doRequest(f.server.Handler(), uploadRequest("owner-2", []byte("data")))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAudio_UnknownSessionIs404(t *testing.T) {
	f := newFixture(t)
	w := doRequest(f.server.Handler(), uploadRequest("owner-1", []byte("data")))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAudio_WrongStateRejectedBeforeBlobWrite(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusTranscribing)

	w := doRequest(f.server.Handler(), uploadRequest("owner-1", []byte("data")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(f.blobs.Blobs) != 0 {
		t.Fatal("no blob may be written when the state check fails")
	}
}

func TestUploadAudio_OversizedBodyIs413(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)
	f.server.MaxAudioBytes = 16

	w := doRequest(f.server.Handler(), uploadRequest("owner-1", bytes.Repeat([]byte("x"), 17)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
	if len(f.blobs.Blobs) != 0 {
		t.Fatal("oversized audio must not reach blob storage")
	}
}

func TestUploadAudio_EmptyBodyIs400(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	w := doRequest(f.server.Handler(), uploadRequest("owner-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAudio_BlobFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)
	f.blobs.PutErr = errors.New("blob service down")

	w := doRequest(f.server.Handler(), uploadRequest("owner-1", []byte("data")))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	sess, _ := f.store.GetSession(t.Context(), "sess-1")
	if sess.Status != store.StatusRecording {
		t.Fatalf("status = %s; a failed store must leave the session in recording", sess.Status)
	}
}

func TestGetAudio_StreamsWithPrivateCaching(t *testing.T) {
	f := newFixture(t)
	sess := f.seedSession(t, store.StatusReview)
	ref, err := f.blobs.Put(t.Context(), "owner-1", []byte("stored-audio"), "audio/mp4")
	if err != nil {
		t.Fatal(err)
	}
	sess.AudioRef = ref
	sess.AudioMIME = "audio/mp4"
	if err := f.store.UpdateSession(t.Context(), sess); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/audio", nil)
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if got := w.Body.String(); got != "stored-audio" {
		t.Fatalf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mp4" {
		t.Fatalf("content-type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "private, max-age=0" {
		t.Fatalf("cache-control = %q", cc)
	}
}

func TestGetAudio_NoAudioIs404(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	r := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/audio", nil)
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetAudio_UntrustedBlobHostIs502(t *testing.T) {
	f := newFixture(t)
	sess := f.seedSession(t, store.StatusReview)
	ref, err := f.blobs.Put(t.Context(), "owner-1", []byte("stored-audio"), "audio/webm")
	if err != nil {
		t.Fatal(err)
	}
	sess.AudioRef = ref
	if err := f.store.UpdateSession(t.Context(), sess); err != nil {
		t.Fatal(err)
	}
	f.server.Fetcher = audiofetch.New([]string{"blob.example.com"}, 1<<20)

	r := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/audio", nil)
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
}

// denyAll trips the entitlement gate for every owner.
type denyAll struct{}

func (denyAll) Allow(context.Context, string) error { return errors.New("monthly quota exhausted") }

func TestSynthesize_FallbackWithoutModel(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	body, _ := json.Marshal(synthesizeRequest{
		Transcript: "I liked how the author handled uncertainty. What does this mean for the ending?",
		BookID:     "book-1",
	})
	r := httptest.NewRequest(http.MethodPost, "/api/synthesize", bytes.NewReader(body))
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var resp synthesizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Source != synthesis.SourceFallback {
		t.Fatalf("source = %q, want fallback", resp.Source)
	}
	if len(resp.Artifacts.Insights) == 0 || len(resp.Artifacts.OpenQuestions) == 0 {
		t.Fatalf("artifacts = %+v", resp.Artifacts)
	}
	if resp.EstimatedCostUSD != 0 {
		t.Fatalf("cost = %v, want 0", resp.EstimatedCostUSD)
	}
}

func TestSynthesize_MissingBookIDIs400(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(`{"transcript": "t"}`))
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSynthesize_EntitlementDeniedIs429(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)
	f.server.Entitlements = denyAll{}

	body, _ := json.Marshal(synthesizeRequest{Transcript: "real words", BookID: "book-1"})
	r := httptest.NewRequest(http.MethodPost, "/api/synthesize", bytes.NewReader(body))
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSynthesize_EmptyTranscriptSkipsEntitlementCheck(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)
	f.server.Entitlements = denyAll{}

	body, _ := json.Marshal(synthesizeRequest{Transcript: "   ", BookID: "book-1"})
	r := httptest.NewRequest(http.MethodPost, "/api/synthesize", bytes.NewReader(body))
	r.Header.Set("X-Owner-ID", "owner-1")
	w := doRequest(f.server.Handler(), r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; no paid call happens for an empty transcript", w.Code)
	}
	var resp synthesizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Source != synthesis.SourceEmptyTranscript {
		t.Fatalf("source = %q", resp.Source)
	}
}

func TestSynthesize_OtherOwnersBookIs403(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, store.StatusRecording)

	body, _ := json.Marshal(synthesizeRequest{Transcript: "t", BookID: "book-1"})
	r := httptest.NewRequest(http.MethodPost, "/api/synthesize", bytes.NewReader(body))
	r.Header.Set("X-Owner-ID", "owner-2")
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := doRequest(f.server.Handler(), r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
