// Package extract turns an uploaded PDF into cleaned plain text. It never
// returns an error to the caller: anything unreadable degrades to a
// self-describing fallback block that routes the document to manual review.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// minContent is the smallest cleaned-text length still considered a usable
// extraction. Below it the document is most likely image-only.
const minContent = 100

// Extract pulls per-page text out of raw PDF bytes, joined with page markers
// and cleaned. On any failure (corrupt file, encryption, empty or image-only
// content) it returns FallbackText instead.
func Extract(raw []byte) string {
	text, err := pages(raw)
	if err != nil {
		return FallbackText(err.Error(), len(raw))
	}

	cleaned := Clean(text)
	if len([]rune(cleaned)) < minContent {
		return FallbackText("extracted text too short, document may be image-based", len(raw))
	}
	return cleaned
}

func pages(raw []byte) (text string, err error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("document is empty")
	}
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil || pageText == "" {
			// Unreadable pages are skipped, not fatal.
			continue
		}
		fmt.Fprintf(&b, "\n--- page %d ---\n%s\n", i, pageText)
	}
	return b.String(), nil
}

// Clean normalizes whitespace, collapses blank lines, and drops short
// non-CJK lines (header/footer noise). Lines of three characters or fewer
// survive only when they contain a CJK code point.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			// Keep at most one blank line between paragraphs.
			if len(lines) > 0 && lines[len(lines)-1] == "" {
				continue
			}
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			continue
		}
		if len([]rune(line)) <= 3 && !containsCJK(line) {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// FallbackText is the deterministic stand-in used when extraction fails or
// yields too little content. It is fed to the evaluation pipeline like any
// other document text so the pipeline always has input to work with.
func FallbackText(reason string, size int) string {
	return fmt.Sprintf(`Business plan document processing notice.

Document size: %d bytes
Processing status: text extraction failed or content insufficient
Reason: %s

Likely causes:
1. The PDF contains scanned images rather than selectable text
2. The PDF is encrypted or damaged
3. The document has too little content

Note: because the document content could not be extracted, this submission
requires manual review. A reviewer must open the original PDF and score it
by hand.`, size, reason)
}
