package synthesis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// Thresholds for the heuristic extractor.
const (
	// minSentenceChars filters out fragments too short to carry an insight.
	minSentenceChars = 20

	// dupSimilarity is the Jaro score above which two sentences are treated
	// as repeats. Readers thinking aloud restate themselves constantly.
	dupSimilarity = 0.92
)

// quotedText matches straight- and curly-quoted substrings of at least two
// characters.
var quotedText = regexp.MustCompile(`"([^"]{2,})"|“([^”]{2,})”`)

// ExtractHeuristic produces artifacts from a transcript without a model:
// quoted substrings become quotes, question sentences become open questions,
// substantial declarative sentences become insights, and one generic
// book-aware follow-up is added. The result is deterministic.
func ExtractHeuristic(transcript, bookTitle string, limits Limits) Artifacts {
	out := Empty()

	sentences := dedupeSentences(splitSentences(transcript))

	for _, m := range quotedText.FindAllStringSubmatch(transcript, -1) {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		out.Quotes = append(out.Quotes, Quote{Text: strings.TrimSpace(text)})
	}

	for _, s := range sentences {
		if strings.Contains(s, "?") {
			out.OpenQuestions = append(out.OpenQuestions, s)
			continue
		}
		if len(s) < minSentenceChars {
			continue
		}
		out.Insights = append(out.Insights, Insight{
			Title:   sentenceTitle(s),
			Content: s,
		})
	}

	if bookTitle != "" {
		out.FollowUps = append(out.FollowUps,
			fmt.Sprintf("What does this mean for the rest of %s?", bookTitle))
	} else {
		out.FollowUps = append(out.FollowUps,
			"What would you ask the author about this passage?")
	}

	return Clamp(out, limits)
}

// splitSentences breaks the transcript on terminal punctuation, keeping the
// punctuation attached to each sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// dedupeSentences drops sentences that are near-duplicates of an earlier one.
func dedupeSentences(sentences []string) []string {
	var kept []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		dup := false
		for _, prev := range kept {
			if matchr.Jaro(strings.ToLower(prev), lower) > dupSimilarity {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	return kept
}

// sentenceTitle derives a short title from a sentence: the first eight words,
// without trailing punctuation.
func sentenceTitle(s string) string {
	words := strings.Fields(strings.TrimRight(s, ".!"))
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}
