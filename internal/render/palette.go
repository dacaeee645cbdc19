package render

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// StateUnparsed is the palette key for text with no dictionary entry.
const StateUnparsed = "unparsed"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Palette maps card states to CSS colors.
type Palette map[string]string

// DefaultPalette returns the stock colors.
func DefaultPalette() Palette {
	return Palette{
		domain.CardNotInDeck:   "#ffffff",
		domain.CardLocked:      "#a0522d",
		domain.CardRedundant:   "#708090",
		domain.CardNew:         "#ff4500",
		domain.CardLearning:    "#4169e1",
		domain.CardKnown:       "#228b22",
		domain.CardNeverForget: "#9370db",
		domain.CardDue:         "#ffd700",
		domain.CardFailed:      "#dc143c",
		domain.CardSuspended:   "#696969",
		domain.CardBlacklisted: "#b0b0b0",
		StateUnparsed:          "#ffffff",
	}
}

// ParsePalette decodes a JSON object of state to color overrides and layers
// it over the defaults. An empty string yields the defaults. Keys must be a
// card state or unparsed.
func ParsePalette(raw string) (Palette, error) {
	p := DefaultPalette()
	if raw == "" {
		return p, nil
	}
	var overrides map[string]string
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("decode palette: %w", err)
	}
	for state, color := range overrides {
		if state != StateUnparsed && !slices.Contains(domain.CardStates, state) {
			return nil, fmt.Errorf("palette: unknown card state %q", state)
		}
		if !hexColor.MatchString(color) {
			return nil, fmt.Errorf("palette: invalid color %q for %s", color, state)
		}
		p[state] = color
	}
	return p, nil
}

// Color returns the color for state, falling back to the unparsed color.
func (p Palette) Color(state string) string {
	if c, ok := p[state]; ok {
		return c
	}
	return p[StateUnparsed]
}

// Clone returns an independent copy.
func (p Palette) Clone() Palette {
	return maps.Clone(p)
}
