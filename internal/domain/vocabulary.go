package domain

// Card states reported by the vocabulary provider.
const (
	CardNotInDeck   = "not-in-deck"
	CardLocked      = "locked"
	CardRedundant   = "redundant"
	CardNew         = "new"
	CardLearning    = "learning"
	CardKnown       = "known"
	CardNeverForget = "never-forget"
	CardDue         = "due"
	CardFailed      = "failed"
	CardSuspended   = "suspended"
	CardBlacklisted = "blacklisted"
)

// CardStates lists every known card state in display order.
var CardStates = []string{
	CardNotInDeck, CardLocked, CardRedundant, CardNew, CardLearning, CardKnown,
	CardNeverForget, CardDue, CardFailed, CardSuspended, CardBlacklisted,
}

// VocabularyToken references one entry of a batch's vocabulary table.
// Position and Length are UTF-16 units into one original subtitle, not the group text.
type VocabularyToken struct {
	VocabularyIndex int `json:"vocabulary_index"`
	Position        int `json:"position"`
	Length          int `json:"length"`
}

// End returns the exclusive end offset.
func (t VocabularyToken) End() int {
	return t.Position + t.Length
}

// VocabularyEntry is a dictionary entry with the user's flashcard state.
type VocabularyEntry struct {
	VID           int      `json:"vid"`
	SID           int      `json:"sid"`
	RID           int      `json:"rid"`
	Spelling      string   `json:"spelling"`
	Reading       string   `json:"reading"`
	FrequencyRank *int     `json:"frequency_rank,omitempty"`
	Meanings      []string `json:"meanings"`
	PartOfSpeech  []string `json:"part_of_speech"`
	CardState     []string `json:"card_state"` // nil or empty: not in any deck
}

// State returns the display state after the redundant tie-break.
func (e *VocabularyEntry) State() string {
	if e == nil {
		return ""
	}
	return ResolveCardState(e.CardState)
}

// InDeck reports whether the entry carries any card state.
func (e *VocabularyEntry) InDeck() bool {
	return e != nil && len(e.CardState) > 0
}

// ResolveCardState picks the display state from an ordered tag list.
// "redundant" is a meta tag: when a second tag exists it wins.
func ResolveCardState(tags []string) string {
	switch {
	case len(tags) == 0:
		return ""
	case tags[0] == CardRedundant && len(tags) > 1:
		return tags[1]
	default:
		return tags[0]
	}
}

// PlacedEntry is a vocabulary entry anchored to a span of one subtitle.
type PlacedEntry struct {
	VocabularyEntry
	Position int `json:"position"`
	Length   int `json:"length"`
}

// End returns the exclusive end offset.
func (p PlacedEntry) End() int {
	return p.Position + p.Length
}
