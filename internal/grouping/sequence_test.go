package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	tests := []struct {
		name                   string
		current, total, window int
		want                   []int
	}{
		{"middle of many groups", 5, 20, 6, []int{5, 6, 7, 4, 8, 9}},
		{"first group only moves forward", 0, 10, 6, []int{0, 1, 2, 3, 4, 5}},
		{"last group only moves backward", 9, 10, 6, []int{9, 8, 7, 6, 5, 4}},
		{"fewer groups than window", 1, 3, 6, []int{1, 2, 0}},
		{"single group", 0, 1, 6, []int{0}},
		{"window of one", 3, 10, 1, []int{3}},
		{"out of range", 4, 3, 6, nil},
		{"no groups", 0, 0, 6, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sequence(tt.current, tt.total, tt.window))
		})
	}
}

func TestSequence_NoDuplicates(t *testing.T) {
	for total := 1; total < 12; total++ {
		for current := range total {
			seen := map[int]bool{}
			for _, i := range Sequence(current, total, DefaultWindow) {
				assert.False(t, seen[i], "duplicate %d for current=%d total=%d", i, current, total)
				assert.True(t, i >= 0 && i < total)
				seen[i] = true
			}
		}
	}
}
