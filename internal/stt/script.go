package stt

import "unicode"

var scripts = map[string]*unicode.RangeTable{
	"latin":    unicode.Latin,
	"cyrillic": unicode.Cyrillic,
	"han":      unicode.Han,
	"arabic":   unicode.Arabic,
	"hangul":   unicode.Hangul,
}

// InScript reports whether text contains at least one character of the named
// script. Callers use it to reject transcripts that contain nothing from the
// input language's expected script as mis-recognitions. An empty or unknown
// script name accepts everything.
func InScript(text, script string) bool {
	table, ok := scripts[script]
	if !ok {
		return true
	}
	for _, r := range text {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}
