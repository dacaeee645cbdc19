package domain

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Offsets exchanged with providers and stored on spans are UTF-16 code units.

// UnitLen returns the length of s in UTF-16 code units.
func UnitLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteOffset converts a UTF-16 offset into a byte offset in s.
// Offsets inside a surrogate pair snap back to the start of the code point,
// and offsets past the end clamp to len(s).
func ByteOffset(s string, unit int) int {
	if unit <= 0 {
		return 0
	}
	units := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if units+w > unit {
			return i
		}
		units += w
	}
	return len(s)
}

// SliceUnits returns s[start:end] with both bounds in UTF-16 code units.
func SliceUnits(s string, start, end int) string {
	if end <= start {
		return ""
	}
	from := ByteOffset(s, start)
	to := ByteOffset(s, end)
	if to < from {
		return ""
	}
	return s[from:to]
}

// UnitOffset converts a byte offset into s to UTF-16 code units.
func UnitOffset(s string, byteOffset int) int {
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	return UnitLen(s[:byteOffset])
}

// SnapUnit moves a UTF-16 offset back to the start of the code point that
// contains it, clamped to [0, UnitLen(s)].
func SnapUnit(s string, unit int) int {
	return UnitOffset(s, ByteOffset(s, unit))
}

// FirstRune returns the first code point of s and its UTF-16 width.
func FirstRune(s string) (string, int) {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return "", 0
	}
	return s[:size], utf16.RuneLen(r)
}
