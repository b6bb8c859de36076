// Package layout breaks caption text into rows that fit a pixel width.
//
// Wrapping is greedy: words are appended to the current row until the next
// one would overflow, then a new row is started. Words are never split or
// hyphenated, so a word wider than the limit occupies a row of its own.
package layout

import (
	"math"
	"strings"
)

// MeasureFunc returns the rendered width of s in pixels
type MeasureFunc func(s string) float64

// Wrap lays out text into rows no wider than maxWidth under measure.
// Explicit newlines always start a new row.
func Wrap(text string, measure MeasureFunc, maxWidth float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(paragraph, measure, maxWidth)...)
	}
	return lines
}

func wrapParagraph(paragraph string, measure MeasureFunc, maxWidth float64) []string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Split(paragraph, " ") {
		candidate := line.String() + word + " "
		if fits(measure(candidate), maxWidth) || line.Len() == 0 {
			line.WriteString(word)
			line.WriteByte(' ')
			continue
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
		line.Reset()
		line.WriteString(word)
		line.WriteByte(' ')
	}
	if line.Len() > 0 {
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}
	return lines
}

// fits treats NaN and infinite widths as overflowing
func fits(width, maxWidth float64) bool {
	if math.IsNaN(width) || math.IsInf(width, 0) {
		return false
	}
	return width <= maxWidth
}
