package api

// Public deck aliases accepted in place of a numeric deck id.
const (
	DeckAliasMining      = "mining"
	DeckAliasNeverForget = "never-forget"
	DeckAliasBlacklist   = "blacklist"
)

// Subtitle lookup states.
const (
	StatusReady   = "ready"
	StatusPending = "pending"
)

// maskedSecret replaces stored credentials in responses.
const maskedSecret = "********"
