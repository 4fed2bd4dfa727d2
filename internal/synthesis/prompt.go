package synthesis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/pkg/llm"
)

const systemPrompt = `You distill a reader's spoken notes about a book into structured artifacts.
Work only from the transcript and the library context provided. Respond with
JSON matching the required schema. Keep every item concise and grounded in
what the reader actually said; do not invent quotes.`

// BuildPrompt assembles the model messages from a transcript and a packed
// library context. The transcript is hard-truncated to charLimit characters
// so a runaway recording cannot blow the prompt budget.
func BuildPrompt(transcript string, pack *contextpack.Pack, charLimit int) []llm.Message {
	if charLimit > 0 && utf8.RuneCountInString(transcript) > charLimit {
		transcript = string([]rune(transcript)[:charLimit])
	}

	var b strings.Builder
	b.WriteString("## Library context\n")
	writePack(&b, pack)
	b.WriteString("\n## Transcript\n")
	b.WriteString(transcript)
	b.WriteString("\n")

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// writePack renders the context pack sections in a fixed order so identical
// packs always produce identical prompts.
func writePack(b *strings.Builder, pack *contextpack.Pack) {
	if pack == nil {
		b.WriteString("(no library context)\n")
		return
	}

	fmt.Fprintf(b, "Currently reading: %s by %s\n", pack.Current.Title, pack.Current.Author)
	if pack.Current.Description != "" {
		fmt.Fprintf(b, "About the book: %s\n", pack.Current.Description)
	}

	writeBookList(b, "Also reading", pack.Reading)
	writeBookList(b, "Finished", pack.Finished)
	writeBookList(b, "Wants to read", pack.WantToRead)

	if len(pack.Notes) > 0 {
		b.WriteString("Recent notes:\n")
		for _, n := range pack.Notes {
			fmt.Fprintf(b, "- %s\n", n.Text)
		}
	}
}

func writeBookList(b *strings.Builder, label string, refs []contextpack.BookRef) {
	if len(refs) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, r := range refs {
		fmt.Fprintf(b, "- %s by %s\n", r.Title, r.Author)
	}
}
