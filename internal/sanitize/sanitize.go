// Package sanitize normalizes scraped text into the character set the PDF
// renderer can draw.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// NotAvailable is the placeholder used when a summary has no content.
const NotAvailable = "N/A"

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	citationMarker = regexp.MustCompile(`\[[0-9]+\]`)
	parenthetical  = regexp.MustCompile(`\([^)]{0,120}\)`)

	strict = bluemonday.StrictPolicy()
)

// Text decomposes s (NFKD), drops control and non-printable runes, keeps
// only printable ASCII, and collapses whitespace runs to single spaces.
// Accented letters survive as their base letter.
func Text(s string) string {
	if s == "" {
		return ""
	}
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r > unicode.MaxASCII:
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(b.String(), " "))
}

// Summary reduces a biography extract to its first two sentences with
// short parentheticals removed. It returns NotAvailable when nothing is left.
func Summary(extract string) string {
	if strings.TrimSpace(extract) == "" {
		return NotAvailable
	}
	stripped := parenthetical.ReplaceAllString(extract, "")
	sentences := splitSentences(stripped, 2)
	if out := Text(strings.Join(sentences, " ")); out != "" {
		return out
	}
	return NotAvailable
}

// splitSentences splits s after '.', '!' or '?' followed by whitespace and
// returns at most limit pieces.
func splitSentences(s string, limit int) []string {
	var out []string
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes) && len(out) < limit; i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if len(out) < limit && start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// StripMarkup removes every HTML tag from fragment and decodes entities.
func StripMarkup(fragment string) string {
	return html.UnescapeString(strict.Sanitize(fragment))
}

// CleanCell tidies a scraped table cell: citation markers such as "[3]"
// are dropped and the remainder is passed through Text.
func CleanCell(s string) string {
	return Text(citationMarker.ReplaceAllString(s, ""))
}
