package channels

import "strings"

// SplitMessage splits content into chunks of at most limit characters,
// preferring natural boundaries in order: newline, sentence end, clause
// break, word break. A hard mid-word cut only happens when no boundary
// exists within the chunk. Lengths are rune counts since Discord's limit
// is character based.
func SplitMessage(content string, limit int) []string {
	if limit <= 0 {
		return []string{content}
	}

	var chunks []string
	runes := []rune(strings.TrimSpace(content))

	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		window := runes[:limit]
		cut, skip := splitPoint(window)

		chunk := strings.TrimRight(string(runes[:cut]), " \t\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut+skip:]), " \t\n"))
	}

	return chunks
}

// splitPoint returns the end of the current chunk within window, plus how
// many runes to skip before the next chunk starts.
func splitPoint(window []rune) (cut, skip int) {
	if i := lastRune(window, '\n'); i > 0 {
		return i, 1
	}
	if i := lastSeq(window, []rune(". ")); i > 0 {
		return i + 1, 1
	}
	if i := lastSeq(window, []rune(", ")); i > 0 {
		return i + 1, 1
	}
	if i := lastRune(window, ' '); i > 0 {
		return i, 1
	}
	return len(window), 0
}

func lastRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func lastSeq(runes, seq []rune) int {
	for i := len(runes) - len(seq); i >= 0; i-- {
		match := true
		for j := range seq {
			if runes[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
