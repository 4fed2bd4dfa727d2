// Package mock provides in-memory doubles of the store interfaces for tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quillreads/voicenotes/pkg/store"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.BlobStore = (*BlobStore)(nil)
)

// Store is an in-memory [store.Store]. The zero value is not usable; create
// one with [NewStore]. Error fields, when set, are returned by the matching
// method so tests can force failures at any persistence point.
type Store struct {
	mu sync.Mutex

	Sessions  map[string]*store.Session
	Segments  map[string][]store.TranscriptSegment
	Books     map[string]*store.Book
	Notes     []store.Note
	Artifacts map[string][]store.ArtifactRecord

	GetSessionErr       error
	UpdateSessionErr    error
	PatchTelemetryErr   error
	GetBookErr          error
	SearchNotesErr      error
	ReplaceArtifactsErr error
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		Sessions:  map[string]*store.Session{},
		Segments:  map[string][]store.TranscriptSegment{},
		Books:     map[string]*store.Book{},
		Artifacts: map[string][]store.ArtifactRecord{},
	}
}

func (s *Store) CreateSession(ctx context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Sessions[sess.ID]; ok {
		return fmt.Errorf("mock store: session %q already exists", sess.ID)
	}
	cp := *sess
	s.Sessions[sess.ID] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetSessionErr != nil {
		return nil, s.GetSessionErr
	}
	sess, ok := s.Sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateSessionErr != nil {
		return s.UpdateSessionErr
	}
	if _, ok := s.Sessions[sess.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *sess
	s.Sessions[sess.ID] = &cp
	return nil
}

func (s *Store) PatchTelemetry(ctx context.Context, id string, t store.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PatchTelemetryErr != nil {
		return s.PatchTelemetryErr
	}
	sess, ok := s.Sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Telemetry = t
	return nil
}

func (s *Store) AppendSegment(ctx context.Context, seg *store.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg.Seq = len(s.Segments[seg.SessionID]) + 1
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now()
	}
	s.Segments[seg.SessionID] = append(s.Segments[seg.SessionID], *seg)
	return nil
}

func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]store.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.TranscriptSegment(nil), s.Segments[sessionID]...), nil
}

func (s *Store) GetBook(ctx context.Context, id string) (*store.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetBookErr != nil {
		return nil, s.GetBookErr
	}
	b, ok := s.Books[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBooksByOwner(ctx context.Context, ownerID string) ([]store.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Book
	for _, b := range s.Books {
		if b.OwnerID == ownerID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) ListNotesByOwner(ctx context.Context, ownerID string) ([]store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Note
	for _, n := range s.Notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SearchNotes returns the owner's embedded notes in insertion order, capped
// at topK. The mock does no actual similarity ranking.
func (s *Store) SearchNotes(ctx context.Context, ownerID string, query []float32, topK int) ([]store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SearchNotesErr != nil {
		return nil, s.SearchNotesErr
	}
	var out []store.Note
	for _, n := range s.Notes {
		if n.OwnerID == ownerID && len(n.Embedding) > 0 {
			out = append(out, n)
		}
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (s *Store) ReplaceArtifacts(ctx context.Context, sessionID string, recs []store.ArtifactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReplaceArtifactsErr != nil {
		return s.ReplaceArtifactsErr
	}
	s.Artifacts[sessionID] = append([]store.ArtifactRecord(nil), recs...)
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, sessionID string) ([]store.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.ArtifactRecord(nil), s.Artifacts[sessionID]...), nil
}

// BlobStore is an in-memory [store.BlobStore]. References resolve to
// BaseURL + "/" + ref.
type BlobStore struct {
	mu sync.Mutex

	BaseURL string
	Blobs   map[string][]byte
	MIMEs   map[string]string

	PutErr     error
	ResolveErr error

	seq int
}

// NewBlobStore returns an empty in-memory blob store resolving against
// baseURL.
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		BaseURL: baseURL,
		Blobs:   map[string][]byte{},
		MIMEs:   map[string]string{},
	}
}

func (b *BlobStore) Put(ctx context.Context, ownerID string, data []byte, mimeType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PutErr != nil {
		return "", b.PutErr
	}
	b.seq++
	ref := fmt.Sprintf("%s/audio-%d", ownerID, b.seq)
	b.Blobs[ref] = append([]byte(nil), data...)
	b.MIMEs[ref] = mimeType
	return ref, nil
}

func (b *BlobStore) ResolveURL(ctx context.Context, ref string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ResolveErr != nil {
		return "", b.ResolveErr
	}
	if _, ok := b.Blobs[ref]; !ok {
		return "", store.ErrNotFound
	}
	return b.BaseURL + "/" + ref, nil
}
