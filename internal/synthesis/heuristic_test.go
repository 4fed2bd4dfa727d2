package synthesis

import (
	"strings"
	"testing"
)

func TestExtractHeuristic_Quotes(t *testing.T) {
	transcript := `The line "all of this has happened before" stuck with me, as did “so it goes” later on.`
	got := ExtractHeuristic(transcript, "", DefaultLimits())

	if len(got.Quotes) != 2 {
		t.Fatalf("quotes = %+v, want 2", got.Quotes)
	}
	if got.Quotes[0].Text != "all of this has happened before" {
		t.Fatalf("first quote = %q", got.Quotes[0].Text)
	}
	if got.Quotes[1].Text != "so it goes" {
		t.Fatalf("second quote = %q", got.Quotes[1].Text)
	}
}

func TestExtractHeuristic_QuestionsAndInsights(t *testing.T) {
	transcript := "The pacing in the middle section really worked for me. Why did the narrator skip the trial? Short."
	got := ExtractHeuristic(transcript, "The Trial", DefaultLimits())

	if len(got.OpenQuestions) != 1 || !strings.Contains(got.OpenQuestions[0], "trial") {
		t.Fatalf("openQuestions = %v", got.OpenQuestions)
	}
	if len(got.Insights) != 1 {
		t.Fatalf("insights = %+v, want 1 (fragment under threshold dropped)", got.Insights)
	}
	if got.Insights[0].Title == "" || got.Insights[0].Content == "" {
		t.Fatalf("insight missing title or content: %+v", got.Insights[0])
	}
	if len(got.FollowUps) != 1 || !strings.Contains(got.FollowUps[0], "The Trial") {
		t.Fatalf("followUps = %v, want one mentioning the book", got.FollowUps)
	}
}

func TestExtractHeuristic_DedupesRestatements(t *testing.T) {
	transcript := "The ending felt rushed to me honestly. The ending felt rushed to me honestly!"
	got := ExtractHeuristic(transcript, "", DefaultLimits())
	if len(got.Insights) != 1 {
		t.Fatalf("insights = %d, want 1 after dedupe", len(got.Insights))
	}
}

func TestExtractHeuristic_Deterministic(t *testing.T) {
	transcript := "I keep thinking about the framing device. Was it necessary? \"Memory is a liar\" was the best line."
	first := ExtractHeuristic(transcript, "Book", DefaultLimits())
	for range 5 {
		got := ExtractHeuristic(transcript, "Book", DefaultLimits())
		if len(got.Insights) != len(first.Insights) ||
			len(got.OpenQuestions) != len(first.OpenQuestions) ||
			len(got.Quotes) != len(first.Quotes) {
			t.Fatal("heuristic output varies between runs")
		}
	}
}
