package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitLen(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "abc", 3},
		{"kana", "食べている", 5},
		{"astral counts as two", "𠮷野家", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnitLen(tt.in))
		})
	}
}

func TestSliceUnits(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		start, end int
		want       string
	}{
		{"prefix", "食べている", 0, 2, "食べ"},
		{"suffix", "食べている", 2, 5, "ている"},
		{"end clamps", "食べる", 1, 99, "べる"},
		{"inverted is empty", "食べる", 2, 1, ""},
		{"after astral", "𠮷野家", 2, 4, "野家"},
		{"inside surrogate snaps back", "𠮷野家", 1, 3, "𠮷野"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SliceUnits(tt.in, tt.start, tt.end))
		})
	}
}

func TestSliceUnits_AdjacentSlicesAreLossless(t *testing.T) {
	s := "a𠮷b食べ"
	n := UnitLen(s)
	for cut := 0; cut <= n; cut++ {
		assert.Equal(t, s, SliceUnits(s, 0, cut)+SliceUnits(s, cut, n), "cut at %d", cut)
	}
}

func TestUnitOffset(t *testing.T) {
	s := "𠮷野"
	assert.Equal(t, 0, UnitOffset(s, 0))
	assert.Equal(t, 2, UnitOffset(s, 4))
	assert.Equal(t, 3, UnitOffset(s, len(s)))
	assert.Equal(t, 3, UnitOffset(s, 100))
}

func TestSnapUnit(t *testing.T) {
	s := "𠮷野"
	tests := []struct {
		unit int
		want int
	}{
		{-1, 0},
		{0, 0},
		{1, 0},
		{2, 2},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SnapUnit(s, tt.unit), "unit %d", tt.unit)
	}
}

func TestFirstRune(t *testing.T) {
	r, w := FirstRune("𠮷野")
	assert.Equal(t, "𠮷", r)
	assert.Equal(t, 2, w)

	r, w = FirstRune("")
	assert.Empty(t, r)
	assert.Zero(t, w)
}
