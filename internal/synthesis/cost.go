package synthesis

import "strings"

// modelRate is the USD price per million tokens for one model family.
type modelRate struct {
	inputPerMTok  float64
	outputPerMTok float64
}

// priceTable maps model-id prefixes to rates. Longest-prefix entries come
// first so "gpt-4o-mini" is not priced as "gpt-4o". Unrecognised ids use
// defaultRate.
var priceTable = []struct {
	prefix string
	rate   modelRate
}{
	{"gpt-5-mini", modelRate{0.25, 2.00}},
	{"gpt-5", modelRate{1.25, 10.00}},
	{"gpt-4o-mini", modelRate{0.15, 0.60}},
	{"gpt-4o", modelRate{2.50, 10.00}},
	{"gpt-4.1-mini", modelRate{0.40, 1.60}},
	{"gpt-4.1", modelRate{2.00, 8.00}},
	{"claude", modelRate{3.00, 15.00}},
	{"gemini", modelRate{1.25, 5.00}},
}

// defaultRate prices models the table does not recognise.
var defaultRate = modelRate{2.50, 10.00}

// EstimateCost converts reported token usage into estimated USD spend.
// Negative token counts are treated as zero, so the result is never negative.
// Provider prefixes ("anthropic/claude-...") are stripped before lookup.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}

	if i := strings.IndexByte(model, '/'); i >= 0 {
		model = model[i+1:]
	}

	rate := defaultRate
	for _, entry := range priceTable {
		if strings.HasPrefix(model, entry.prefix) {
			rate = entry.rate
			break
		}
	}

	const million = 1_000_000
	return float64(promptTokens)/million*rate.inputPerMTok +
		float64(completionTokens)/million*rate.outputPerMTok
}
