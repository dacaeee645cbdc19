package watcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSettleDelay is how long a file must stay unchanged before its
// event is emitted. Browser extensions write snapshots in several chunks.
const DefaultSettleDelay = 250 * time.Millisecond

// Options configures the file watcher behavior.
type Options struct {
	// IncludePatterns restricts events to matching base names. Nil
	// matches HTML snapshots.
	IncludePatterns []string
	IgnorePatterns  []string
	SettleDelay     time.Duration
	IgnoreHidden    bool
	Clock           clockwork.Clock
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.IncludePatterns == nil {
		o.IncludePatterns = []string{"*.html", "*.htm"}
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			"*.annotated.html",
			"*.tmp",
			"*.swp",
			"*~",
		}
		// Hidden files are editor and download scratch files.
		o.IgnoreHidden = true
	}
}

// shouldIgnore checks if a path is filtered out.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}

	if len(o.IncludePatterns) == 0 {
		return false
	}
	for _, pattern := range o.IncludePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return false
		}
	}
	return true
}
