// Package textproc estimates token usage and compresses document text so
// that analysis input fits the configured model budget.
package textproc

import "unicode"

// EstimateTokens approximates the token count of mixed Chinese/Latin text.
// CJK characters weigh ~1.5 tokens, latin words ~1.3, everything else ~0.5.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var cjkChars, latinWords, otherChars int
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			cjkChars++
			inWord = false
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			if !inWord {
				latinWords++
				inWord = true
			}
		default:
			otherChars++
			inWord = false
		}
	}

	return int(float64(cjkChars)*1.5 + float64(latinWords)*1.3 + float64(otherChars)*0.5)
}
