package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/internal/observe"
	"github.com/quillreads/voicenotes/internal/synthesis"
	"github.com/quillreads/voicenotes/pkg/store"
)

// synthesizeRequest is the direct-synthesis input.
type synthesizeRequest struct {
	Transcript string `json:"transcript"`
	BookID     string `json:"bookId"`
	SessionID  string `json:"sessionId,omitempty"`
}

// synthesizeResponse mirrors the pipeline's persisted result for callers that
// synthesize a transcript directly.
type synthesizeResponse struct {
	Artifacts        synthesis.Artifacts `json:"artifacts"`
	Source           synthesis.Source    `json:"source"`
	Model            string              `json:"model,omitempty"`
	RequestedModel   string              `json:"requestedModel,omitempty"`
	EstimatedCostUSD float64             `json:"estimatedCostUsd"`
}

// handleSynthesize runs synthesis over a caller-supplied transcript. The
// entitlement check precedes any paid model call; model failures still return
// 200 with source=fallback because artifact synthesis is never user-fatal.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	if ownerID == "" {
		s.writeError(w, r, http.StatusUnauthorized, "missing owner identity")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BookID == "" {
		s.writeError(w, r, http.StatusBadRequest, "bookId is required")
		return
	}

	if s.Entitlements != nil && strings.TrimSpace(req.Transcript) != "" {
		if err := s.Entitlements.Allow(r.Context(), ownerID); err != nil {
			s.writeError(w, r, http.StatusTooManyRequests, err.Error())
			return
		}
	}

	book, err := s.Store.GetBook(r.Context(), req.BookID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		s.report(r, err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if book.OwnerID != ownerID {
		s.writeError(w, r, http.StatusForbidden, "book belongs to another owner")
		return
	}

	// Library snapshot failures degrade to a pack without that slice: the
	// synthesis itself must still run.
	log := observe.Logger(r.Context())
	books, err := s.Store.ListBooksByOwner(r.Context(), ownerID)
	if err != nil {
		log.Warn("book listing failed; packing without book lists", "error", err)
	}
	notes, err := s.Store.ListNotesByOwner(r.Context(), ownerID)
	if err != nil {
		log.Warn("note listing failed; packing without notes", "error", err)
	}

	others := make([]store.Book, 0, len(books))
	for _, b := range books {
		if b.ID != book.ID {
			others = append(others, b)
		}
	}

	pack := contextpack.Build(contextpack.Input{
		CurrentBook: *book,
		OtherBooks:  others,
		Notes:       notes,
	}, s.PackOptions)

	result := s.Orchestrator.Synthesize(r.Context(), req.Transcript, pack)
	s.Guard.Check(req.SessionID, result.CostUSD)

	writeJSON(w, http.StatusOK, synthesizeResponse{
		Artifacts:        result.Artifacts,
		Source:           result.Source,
		Model:            result.Model,
		RequestedModel:   result.RequestedModel,
		EstimatedCostUSD: result.CostUSD,
	})
}
