package chunking

import (
	"strings"
	"unicode"
)

// splitSentences splits text on sentence boundaries: a '.', '!' or '?'
// followed by whitespace and an uppercase letter. Boundaries inside dotted
// tokens ("e.g.", "3.14") and after short abbreviations ("Dr.", "Mr.") are
// not split. Texts without such boundaries fall back to line splitting, and
// finally to one sentence holding the whole text.
func splitSentences(text string) []string {
	runes := []rune(text)

	sentences := make([]string, 0, 16)
	start := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			i++
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			i++
			continue
		}
		// Find the first character after the whitespace run.
		next := i + 1
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next >= len(runes) || !unicode.IsUpper(runes[next]) {
			i++
			continue
		}
		if isAbbreviationEnd(runes, i) || isDottedTokenEnd(runes, i) {
			i = next
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = next
		i = next
	}
	// No punctuation boundary found: split on line breaks instead, keeping
	// the whole text as a single sentence when there are none either.
	if len(sentences) == 0 {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				sentences = append(sentences, line)
			}
		}
		if len(sentences) == 0 {
			sentences = []string{text}
		}
		return sentences
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isAbbreviationEnd reports whether the period at index i terminates a short
// abbreviation such as "Dr." or "Mr.": an uppercase letter, a lowercase
// letter, then the period.
func isAbbreviationEnd(runes []rune, i int) bool {
	if runes[i] != '.' || i < 2 {
		return false
	}
	return unicode.IsUpper(runes[i-2]) && unicode.IsLower(runes[i-1])
}

// isDottedTokenEnd reports whether the punctuation at index i closes a dotted
// token like "e.g." or "U.S.": a word character, a period, and a word
// character in the three positions before it.
func isDottedTokenEnd(runes []rune, i int) bool {
	if i < 3 {
		return false
	}
	return isWordRune(runes[i-3]) && runes[i-2] == '.' && isWordRune(runes[i-1])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
