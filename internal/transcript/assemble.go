// Package transcript normalizes recognized speech before it is typed into the relay.
package transcript

import (
	"strings"
	"unicode"
)

// Options controls transcript formatting behavior.
type Options struct {
	TrailingSpace bool
}

// Normalize collapses whitespace runs (newlines included, so an injected
// transcript never submits the line on its own) and drops control characters.
// A whitespace-only input normalizes to "".
func Normalize(text string, opts Options) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	normalized := strings.Join(strings.Fields(cleaned), " ")
	if normalized == "" {
		return ""
	}
	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

// Assemble joins recognized segments and normalizes the result.
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}
	return Normalize(strings.Join(segments, " "), opts)
}
