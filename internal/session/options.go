package session

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/subtitlelens/subtitlelens-server/internal/align"
	"github.com/subtitlelens/subtitlelens-server/internal/cache"
	"github.com/subtitlelens/subtitlelens-server/internal/grouping"
	"github.com/subtitlelens/subtitlelens-server/internal/morph/ichimoe"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// Options tunes a session. Zero values take defaults.
type Options struct {
	// Limits bound every group. The default applies both provider limits so
	// each group is sent once to the parser and once to the vocabulary API.
	Limits         []grouping.Limit
	Window         int
	Basis          align.Basis
	CacheSize      int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Clock          clockwork.Clock
}

// Defaults for Options.
const (
	DefaultBackoffInitial = 2 * time.Second
	DefaultBackoffMax     = time.Minute
)

func (o Options) withDefaults() Options {
	if len(o.Limits) == 0 {
		o.Limits = []grouping.Limit{ichimoe.Limit, jpdb.Limit}
	}
	if o.Window <= 0 {
		o.Window = grouping.DefaultWindow
	}
	if o.Basis == "" {
		o.Basis = align.BasisSurface
	}
	if o.CacheSize <= 0 {
		o.CacheSize = cache.DefaultSize
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = DefaultBackoffInitial
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = max(DefaultBackoffMax, o.BackoffInitial)
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}
