package observer

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/subtitlelens/subtitlelens-server/internal/dedup"
)

// Default selectors for the asbplayer subtitle overlay.
const (
	DefaultOnscreenSelector  = ".asbplayer-subtitles-container-bottom .asbplayer-subtitles span"
	DefaultOffscreenSelector = "body > div.asbplayer-offscreen > div > span"

	// AnnotationClass marks spans inserted by the renderer. Nothing inside
	// them is ever reported.
	AnnotationClass = "cr-subtitle"

	offscreenContainerSelector = ".asbplayer-offscreen"
)

// DefaultSettleDelay is how long the offscreen buffer must stay quiet before
// the batch is considered ready.
const DefaultSettleDelay = 750 * time.Millisecond

// Options configures an Observer. Zero values take defaults.
type Options struct {
	OnscreenSelector  string
	OffscreenSelector string

	// VisibilityAttributes are the attribute changes that count as a
	// subtitle appearing or disappearing.
	VisibilityAttributes []string

	DedupWindow time.Duration
	SettleDelay time.Duration
	Clock       clockwork.Clock
}

// DefaultVisibilityAttributes returns the attributes watched by default.
func DefaultVisibilityAttributes() []string {
	return []string{"style", "class", "hidden"}
}

func (o Options) withDefaults() Options {
	if o.OnscreenSelector == "" {
		o.OnscreenSelector = DefaultOnscreenSelector
	}
	if o.OffscreenSelector == "" {
		o.OffscreenSelector = DefaultOffscreenSelector
	}
	if o.VisibilityAttributes == nil {
		o.VisibilityAttributes = DefaultVisibilityAttributes()
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = dedup.DefaultWindow
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}
