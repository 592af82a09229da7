// Package pipeline turns a block of text into one audio stream: every
// non-empty line is spoken, consecutive lines are separated by a silent
// pause, and the combined audio is encoded for download.
//
// A Run is single-use and strictly sequential. Units are synthesized in line
// order, progress is reported after each unit, and the first failure ends the
// run without exposing partial audio.
package pipeline

import (
	"strings"
)

const byteOrderMark = "\uFEFF"

// TextUnit is one line of input that will be spoken
type TextUnit struct {
	Index      int    // 0-based position among the surviving units
	SourceLine int    // 1-based line number in the raw text
	Text       string // trimmed, never empty
}

// Split breaks raw text into trimmed, non-empty lines, keeping their order.
// "\n", "\r\n" and "\r" all end a line; a leading byte-order mark is ignored.
func Split(raw string) []TextUnit {
	raw = strings.TrimPrefix(raw, byteOrderMark)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var units []TextUnit
	for i, line := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		units = append(units, TextUnit{
			Index:      len(units),
			SourceLine: i + 1,
			Text:       text,
		})
	}
	return units
}
