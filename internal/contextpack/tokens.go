package contextpack

import "unicode/utf8"

// Estimate approximates the token cost of s using the characters-over-four
// proxy: ceil(runeCount / 4). The pipeline deliberately avoids a real
// tokenizer; downstream budget assertions depend on this exact rounding.
func Estimate(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
