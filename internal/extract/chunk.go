package extract

import "strings"

// sentence-terminal characters, CJK and Latin.
const terminals = "。！？.!?"

// Chunk splits text into size-bounded pieces for downstream consumers.
// Whitespace runs are collapsed first. When the remainder is longer than
// size, the cut point is searched backward (up to size-overlap characters)
// for a sentence terminal so chunks end on sentence boundaries where
// possible; otherwise it hard-cuts at size. Each subsequent chunk begins
// overlap characters before the previous cut, and the start index always
// strictly increases.
func Chunk(text string, size, overlap int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || size <= 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		limit := start + size - overlap
		if limit < start {
			limit = start
		}
		for i := end - 1; i > limit; i-- {
			if strings.ContainsRune(terminals, runes[i]) {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
