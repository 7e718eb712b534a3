package render

import (
	"iter"
	"strings"
)

// Wrap yields the lines of text greedily packed into width, as measured by
// measure. Words are never split, so a word wider than width gets a line of
// its own. Whitespace runs collapse to single spaces; joining the lines
// with spaces gives back the words of text in order. The sequence can be
// ranged over more than once.
func Wrap(text string, width float64, measure func(string) float64) iter.Seq[string] {
	return func(yield func(string) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if measure(candidate) <= width {
				line = candidate
				continue
			}
			if !yield(line) {
				return
			}
			line = w
		}
		yield(line)
	}
}
