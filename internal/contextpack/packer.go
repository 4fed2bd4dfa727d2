// Package contextpack builds the token-budgeted, privacy-filtered snapshot of
// a reader's library that grounds each synthesis prompt.
//
// Pack is a pure function: identical inputs and options always produce a
// byte-for-byte identical Pack. There is no randomness and no clock access —
// every timestamp used for ranking arrives with the input. The Summary block
// exists for auditability: its redaction counter is the proof that private
// data never reached a model prompt.
package contextpack

import (
	"sort"
	"strings"

	"github.com/quillreads/voicenotes/pkg/store"
)

// Options tunes the packer's budget allocator.
type Options struct {
	// TokenBudget bounds the pack size in approximate tokens. The current
	// book's title and author are always counted, even at budget zero.
	TokenBudget int

	// MaxNotesPerOtherBook caps how many notes a single non-current book may
	// contribute, so one book cannot dominate under pure recency. Default 3.
	MaxNotesPerOtherBook int

	// MinNoteChars is the minimum viable length for a truncated note. A note
	// that cannot keep at least this many characters is dropped instead.
	// Default 40.
	MinNoteChars int
}

func (o Options) withDefaults() Options {
	if o.MaxNotesPerOtherBook == 0 {
		o.MaxNotesPerOtherBook = 3
	}
	if o.MinNoteChars == 0 {
		o.MinNoteChars = 40
	}
	return o
}

// Input is the single library snapshot a Pack is computed from.
type Input struct {
	// CurrentBook is the book the session is attached to.
	CurrentBook store.Book

	// OtherBooks are the owner's remaining books, any status.
	OtherBooks []store.Book

	// Notes are the candidate notes, on the current book or others. Callers
	// may pre-filter the pool (e.g. semantic top-K); the packer applies its
	// own privacy filter, recency ordering, and diversity cap.
	Notes []store.Note
}

// CurrentBook is the packed current-book block.
type CurrentBook struct {
	Title       string
	Author      string
	Description string
}

// BookRef is one entry in a status-bucketed book list.
type BookRef struct {
	Title  string
	Author string
}

// NoteSnippet is one packed note.
type NoteSnippet struct {
	Text        string
	BookID      string
	CurrentBook bool
	Truncated   bool
}

// Summary is the pack's audit block.
type Summary struct {
	TokensUsed  int
	TokenBudget int

	// RedactedCount counts every exclusion made for privacy reasons.
	RedactedCount int

	IncludedNotes  int
	TruncatedNotes int

	// Per-bucket included book counts.
	ReadingBooks    int
	FinishedBooks   int
	WantToReadBooks int
}

// Pack is the assembled context. It is ephemeral — never persisted.
type Pack struct {
	Current    CurrentBook
	Reading    []BookRef
	Finished   []BookRef
	WantToRead []BookRef
	Notes      []NoteSnippet
	Summary    Summary
}

// Build computes a Pack from one library snapshot. Budget accounting order:
// current-book title+author (unconditional), current-book description
// (public-only), notes, then the three status-bucketed book lists.
func Build(in Input, opts Options) *Pack {
	opts = opts.withDefaults()

	p := &Pack{
		Reading:    []BookRef{},
		Finished:   []BookRef{},
		WantToRead: []BookRef{},
		Notes:      []NoteSnippet{},
		Summary:    Summary{TokenBudget: opts.TokenBudget},
	}
	used := 0

	// 1. Title and author are always charged, even when they alone exceed
	// the budget.
	p.Current.Title = in.CurrentBook.Title
	p.Current.Author = in.CurrentBook.Author
	used += Estimate(in.CurrentBook.Title) + Estimate(in.CurrentBook.Author)

	// 2. Description: only a public current book may expose it. A private
	// description is a redaction; a public one that does not fit is merely
	// omitted.
	if desc := strings.TrimSpace(in.CurrentBook.Description); desc != "" {
		if !in.CurrentBook.Public() {
			p.Summary.RedactedCount++
		} else if cost := Estimate(desc); used+cost <= opts.TokenBudget {
			p.Current.Description = desc
			used += cost
		}
	}

	// 3. Notes.
	used = p.packNotes(in, opts, used)

	// 4. Status-bucketed book lists with whatever budget remains.
	byStatus := bucketBooks(in.OtherBooks, &p.Summary)
	p.Reading, used = fillBookList(byStatus[store.BookReading], opts.TokenBudget, used)
	p.Finished, used = fillBookList(byStatus[store.BookFinished], opts.TokenBudget, used)
	p.WantToRead, used = fillBookList(byStatus[store.BookWantToRead], opts.TokenBudget, used)
	p.Summary.ReadingBooks = len(p.Reading)
	p.Summary.FinishedBooks = len(p.Finished)
	p.Summary.WantToReadBooks = len(p.WantToRead)

	p.Summary.TokensUsed = used
	return p
}

// packNotes applies eligibility, ordering, diversity, and budget rules to the
// note pool and returns the updated token usage.
func (p *Pack) packNotes(in Input, opts Options, used int) int {
	visibility := make(map[string]bool, len(in.OtherBooks))
	for _, b := range in.OtherBooks {
		visibility[b.ID] = b.Public()
	}

	// Eligibility: current-book notes always qualify, regardless of the
	// current book's own privacy. Notes on other books qualify only when
	// that book is public; anything else is a privacy redaction.
	eligible := make([]store.Note, 0, len(in.Notes))
	for _, n := range in.Notes {
		if n.BookID == in.CurrentBook.ID {
			eligible = append(eligible, n)
			continue
		}
		if public, ok := visibility[n.BookID]; ok && public {
			eligible = append(eligible, n)
			continue
		}
		// Private or unknown book: either way the note must not reach a
		// model prompt.
		p.Summary.RedactedCount++
	}

	// Recency descending; ties favour current-book notes. The sort is stable
	// so equal candidates keep their input order and the result stays
	// deterministic.
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		aCur := a.BookID == in.CurrentBook.ID
		bCur := b.BookID == in.CurrentBook.ID
		return aCur && !bCur
	})

	perBook := make(map[string]int)
	for _, n := range eligible {
		isCurrent := n.BookID == in.CurrentBook.ID
		if !isCurrent {
			if perBook[n.BookID] >= opts.MaxNotesPerOtherBook {
				continue
			}
		}

		text := normalizeWhitespace(n.Text)
		if text == "" {
			continue
		}

		cost := Estimate(text)
		truncated := false
		if used+cost > opts.TokenBudget {
			// Truncate to what fits rather than dropping, provided a minimum
			// viable length remains.
			remaining := opts.TokenBudget - used
			if remaining <= 0 {
				continue
			}
			keep := remaining * 4
			if keep < opts.MinNoteChars {
				continue
			}
			text = truncateRunes(text, keep)
			cost = Estimate(text)
			truncated = true
		}

		p.Notes = append(p.Notes, NoteSnippet{
			Text:        text,
			BookID:      n.BookID,
			CurrentBook: isCurrent,
			Truncated:   truncated,
		})
		used += cost
		p.Summary.IncludedNotes++
		if truncated {
			p.Summary.TruncatedNotes++
		}
		if !isCurrent {
			perBook[n.BookID]++
		}
	}
	return used
}

// bucketBooks splits the other-book list by status, excluding private books
// (each exclusion is a redaction). Within each bucket, books are ordered by
// most recent update; ties keep input order.
func bucketBooks(books []store.Book, sum *Summary) map[store.BookStatus][]store.Book {
	out := map[store.BookStatus][]store.Book{}
	for _, b := range books {
		if !b.Public() {
			sum.RedactedCount++
			continue
		}
		out[b.Status] = append(out[b.Status], b)
	}
	for status := range out {
		bucket := out[status]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].UpdatedAt.After(bucket[j].UpdatedAt)
		})
		out[status] = bucket
	}
	return out
}

// fillBookList greedily appends book references while they fit the remaining
// budget, returning the list and updated usage.
func fillBookList(books []store.Book, budget, used int) ([]BookRef, int) {
	refs := []BookRef{}
	for _, b := range books {
		cost := Estimate(b.Title) + Estimate(b.Author)
		if used+cost > budget {
			break
		}
		refs = append(refs, BookRef{Title: b.Title, Author: b.Author})
		used += cost
	}
	return refs, used
}

// normalizeWhitespace trims and collapses all interior whitespace runs to a
// single space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
