// Package synthesis turns a transcript plus packed library context into
// structured reading artifacts: insights, open questions, quotes, follow-up
// questions, and context expansions.
//
// The orchestrator prefers a language model with schema-constrained output and
// model-level fallback; when no model is configured, or every model attempt
// fails, it degrades to a deterministic heuristic extractor. Synthesis
// failures are never user-fatal.
package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Insight is one observation the reader voiced, with a short title and the
// supporting content.
type Insight struct {
	Title   string `json:"title"`
	Content string `json:"content"`

	// Source optionally cites the transcript or book passage that prompted
	// the insight.
	Source string `json:"source,omitempty"`
}

// Quote is a passage the reader quoted aloud.
type Quote struct {
	Text string `json:"text"`
}

// Expansion suggests wider context worth exploring (historical background,
// related works, recurring themes).
type Expansion struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Artifacts holds the five independent synthesis output collections.
type Artifacts struct {
	Insights      []Insight   `json:"insights"`
	OpenQuestions []string    `json:"openQuestions"`
	Quotes        []Quote     `json:"quotes"`
	FollowUps     []string    `json:"followUpQuestions"`
	Expansions    []Expansion `json:"contextExpansions"`
}

// Empty returns the canonical empty-artifacts value: every collection present
// and zero-length. All degraded and short-circuit paths return exactly this
// shape so consumers never see nil collections.
func Empty() Artifacts {
	return Artifacts{
		Insights:      []Insight{},
		OpenQuestions: []string{},
		Quotes:        []Quote{},
		FollowUps:     []string{},
		Expansions:    []Expansion{},
	}
}

// Limits caps each collection's item count and per-field character length.
type Limits struct {
	MaxInsights      int
	MaxOpenQuestions int
	MaxQuotes        int
	MaxFollowUps     int
	MaxExpansions    int

	// MaxTitleChars bounds titles; MaxTextChars bounds content, quote text,
	// and question strings.
	MaxTitleChars int
	MaxTextChars  int
}

// DefaultLimits returns the production caps.
func DefaultLimits() Limits {
	return Limits{
		MaxInsights:      6,
		MaxOpenQuestions: 5,
		MaxQuotes:        6,
		MaxFollowUps:     4,
		MaxExpansions:    4,
		MaxTitleChars:    120,
		MaxTextChars:     600,
	}
}

// Parse decodes a model completion into Artifacts. The payload is untrusted
// third-party JSON, so it is decoded into a generic value and run through
// Normalize rather than trusted into the typed struct directly.
func Parse(data []byte) (Artifacts, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Empty(), fmt.Errorf("synthesis: parse artifacts: %w", err)
	}
	return Normalize(raw), nil
}

// Normalize converts an untyped decoded payload into well-formed Artifacts:
//
//   - nil or non-object input yields the canonical empty value
//   - insights and expansions missing a title or content are dropped
//   - quotes missing text are dropped
//   - a non-string source is coerced to absent
//   - question lists keep only non-empty strings
//   - any wrong-typed collection becomes an empty slice
func Normalize(raw any) Artifacts {
	out := Empty()
	obj, ok := raw.(map[string]any)
	if !ok {
		return out
	}

	for _, item := range objectList(obj["insights"]) {
		title := trimmedString(item["title"])
		content := trimmedString(item["content"])
		if title == "" || content == "" {
			continue
		}
		out.Insights = append(out.Insights, Insight{
			Title:   title,
			Content: content,
			Source:  trimmedString(item["source"]),
		})
	}

	out.OpenQuestions = stringList(obj["openQuestions"])

	for _, item := range objectList(obj["quotes"]) {
		text := trimmedString(item["text"])
		if text == "" {
			continue
		}
		out.Quotes = append(out.Quotes, Quote{Text: text})
	}

	out.FollowUps = stringList(obj["followUpQuestions"])

	for _, item := range objectList(obj["contextExpansions"]) {
		title := trimmedString(item["title"])
		content := trimmedString(item["content"])
		if title == "" || content == "" {
			continue
		}
		out.Expansions = append(out.Expansions, Expansion{
			Title:   title,
			Content: content,
			Source:  trimmedString(item["source"]),
		})
	}

	return out
}

// Clamp enforces limits on every collection: item counts first, then
// per-field character lengths.
func Clamp(a Artifacts, l Limits) Artifacts {
	a.Insights = a.Insights[:min(len(a.Insights), l.MaxInsights)]
	a.OpenQuestions = a.OpenQuestions[:min(len(a.OpenQuestions), l.MaxOpenQuestions)]
	a.Quotes = a.Quotes[:min(len(a.Quotes), l.MaxQuotes)]
	a.FollowUps = a.FollowUps[:min(len(a.FollowUps), l.MaxFollowUps)]
	a.Expansions = a.Expansions[:min(len(a.Expansions), l.MaxExpansions)]

	for i := range a.Insights {
		a.Insights[i].Title = clampRunes(a.Insights[i].Title, l.MaxTitleChars)
		a.Insights[i].Content = clampRunes(a.Insights[i].Content, l.MaxTextChars)
	}
	for i := range a.OpenQuestions {
		a.OpenQuestions[i] = clampRunes(a.OpenQuestions[i], l.MaxTextChars)
	}
	for i := range a.Quotes {
		a.Quotes[i].Text = clampRunes(a.Quotes[i].Text, l.MaxTextChars)
	}
	for i := range a.FollowUps {
		a.FollowUps[i] = clampRunes(a.FollowUps[i], l.MaxTextChars)
	}
	for i := range a.Expansions {
		a.Expansions[i].Title = clampRunes(a.Expansions[i].Title, l.MaxTitleChars)
		a.Expansions[i].Content = clampRunes(a.Expansions[i].Content, l.MaxTextChars)
	}
	return a
}

// Total reports the number of artifacts across all five collections.
func (a Artifacts) Total() int {
	return len(a.Insights) + len(a.OpenQuestions) + len(a.Quotes) +
		len(a.FollowUps) + len(a.Expansions)
}

// objectList extracts a []map[string]any from a decoded JSON value, returning
// nil for anything that is not an array of objects.
func objectList(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// stringList extracts the non-empty strings from a decoded JSON array,
// returning an empty slice for wrong-typed input.
func stringList(v any) []string {
	out := []string{}
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range arr {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// trimmedString returns the trimmed string value of v, or "" when v is not a
// string.
func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// clampRunes cuts s to at most n runes.
func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
