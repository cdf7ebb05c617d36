package util

import "unicode/utf16"

// Hash returns the 32-bit rolling hash (h*31 + c over UTF-16 code units)
// used to derive short ids from strings.
func Hash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(c)
	}
	return h
}
