package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden, "Should ignore hidden files by default")
	assert.Equal(t, DefaultSettleDelay, opts.SettleDelay)
	assert.NotNil(t, opts.Clock)
	assert.Contains(t, opts.IgnorePatterns, "*.annotated.html", "Should ignore annotated output by default")
	assert.Equal(t, []string{"*.html", "*.htm"}, opts.IncludePatterns)
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		IgnoreHidden:    false,
		SettleDelay:     200 * time.Millisecond,
		IgnorePatterns:  []string{"*.bak"},
		IncludePatterns: []string{},
	}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden, "Custom ignore hidden should be preserved")
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
	assert.Empty(t, opts.IncludePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"snapshot", "/snapshots/episode01.html", false},
		{"short extension", "/snapshots/episode01.htm", false},
		{"annotated output", "/snapshots/episode01.annotated.html", true},
		{"hidden file", "/snapshots/.episode01.html", true},
		{"hidden directory", "/snapshots/.cache/episode01.html", true},
		{"swap file", "/snapshots/episode01.html.swp", true},
		{"not html", "/snapshots/episode01.srt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, opts.shouldIgnore(tt.path))
		})
	}
}

func TestOptions_ShouldIgnore_NoFilters(t *testing.T) {
	opts := Options{
		IgnoreHidden:    false,
		IgnorePatterns:  []string{},
		IncludePatterns: []string{},
	}
	opts.setDefaults()

	assert.False(t, opts.shouldIgnore("/path/.hidden"), "Should not ignore hidden when disabled")
	assert.False(t, opts.shouldIgnore("/path/page.txt"))
}
