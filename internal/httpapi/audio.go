package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quillreads/voicenotes/internal/audiofetch"
	"github.com/quillreads/voicenotes/internal/observe"
	"github.com/quillreads/voicenotes/internal/session"
	"github.com/quillreads/voicenotes/pkg/store"
)

// Upload metadata headers set by the recording client.
const (
	headerAudioDuration  = "X-Audio-Duration"
	headerCapReached     = "X-Cap-Reached"
	headerLiveTranscript = "X-Live-Transcript"
)

// handleUploadAudio ingests a finished recording: ownership and state checks
// run before any byte of the body is stored, the blob write precedes the
// state advance, and pipeline processing continues asynchronously after the
// 202 response.
func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ownerID := owner(r)
	if ownerID == "" {
		s.writeError(w, r, http.StatusUnauthorized, "missing owner identity")
		return
	}

	sess, err := s.Store.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if sess.OwnerID != ownerID {
		s.writeError(w, r, http.StatusForbidden, "session belongs to another owner")
		return
	}
	if err := session.AcceptUpload(sess); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.MaxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "audio exceeds the maximum upload size")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "could not read audio body")
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "empty audio body")
		return
	}

	mimeType := audiofetch.NormalizeMIME(r.Header.Get("Content-Type"))
	ref, err := s.Blobs.Put(r.Context(), ownerID, data, mimeType)
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "audio storage failed")
		return
	}

	now := time.Now()
	sess.AudioRef = ref
	sess.AudioMIME = mimeType
	if v := r.Header.Get(headerAudioDuration); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d >= 0 {
			sess.DurationSec = d
		}
	}
	sess.CapReached = strings.EqualFold(r.Header.Get(headerCapReached), "true")
	if snippet := strings.TrimSpace(r.Header.Get(headerLiveTranscript)); snippet != "" {
		sess.LiveTranscript = snippet
		// Segment append is best-effort bookkeeping.
		seg := &store.TranscriptSegment{SessionID: sess.ID, Text: snippet, CreatedAt: now}
		if err := s.Store.AppendSegment(r.Context(), seg); err != nil {
			observe.Logger(r.Context()).Warn("live transcript segment append failed",
				"session", sess.ID, "error", err)
		}
	}

	if err := session.Advance(sess, store.StatusTranscribing, now); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.UpdateSession(r.Context(), sess); err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "session update failed")
		return
	}

	// Processing outlives the request; keep trace context but drop the
	// request's cancellation.
	bg := context.WithoutCancel(r.Context())
	go func() {
		if err := s.Pipeline.Run(bg, sess.ID); err != nil {
			observe.Logger(bg).Error("pipeline run failed", "session", sess.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"sessionId": sess.ID,
		"status":    string(sess.Status),
	})
}

// handleGetAudio streams a session's stored audio back to its owner. The blob
// reference resolves to a private URL that is re-validated against the trust
// allow-list before any bytes flow, and byte-range requests pass through.
func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ownerID := owner(r)
	if ownerID == "" {
		s.writeError(w, r, http.StatusUnauthorized, "missing owner identity")
		return
	}

	sess, err := s.Store.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if sess.OwnerID != ownerID {
		s.writeError(w, r, http.StatusForbidden, "session belongs to another owner")
		return
	}
	if sess.AudioRef == "" {
		s.writeError(w, r, http.StatusNotFound, "session has no audio")
		return
	}

	rawURL, err := s.Blobs.ResolveURL(r.Context(), sess.AudioRef)
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "audio resolution failed")
		return
	}
	u, err := s.Fetcher.ValidateURL(rawURL)
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusBadGateway, "audio location rejected")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusBadGateway, "audio fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		s.writeError(w, r, http.StatusBadGateway, "audio source returned "+resp.Status)
		return
	}

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", sess.AudioMIME)
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		observe.Logger(r.Context()).Warn("audio stream interrupted", "session", sess.ID, "error", err)
	}
}
