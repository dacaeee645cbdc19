package api

import (
	"context"
	"errors"
	"strconv"

	domainerrors "github.com/subtitlelens/subtitlelens-server/internal/errors"
	"github.com/subtitlelens/subtitlelens-server/internal/session"
	"github.com/subtitlelens/subtitlelens-server/internal/store"
	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

// providerError gives a remote failure its domain code.
func providerError(err error) error {
	return session.Classify(err)
}

// resolveDeck turns a deck path segment into a jpdb deck id. Besides
// numeric ids it accepts the never-forget and blacklist aliases and
// "mining", which reads the configured mining deck.
func (s *Server) resolveDeck(ctx context.Context, raw string) (int, error) {
	switch raw {
	case DeckAliasNeverForget:
		return jpdb.DeckNeverForget, nil
	case DeckAliasBlacklist:
		return jpdb.DeckBlacklist, nil
	case DeckAliasMining:
		if s.deps.Settings == nil {
			return 0, domainerrors.Validation("mining deck is not configured")
		}
		v, err := s.deps.Settings.Get(ctx, store.KeyMiningDeckID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, domainerrors.Validation("mining deck is not configured")
		}
		if err != nil {
			return 0, err
		}
		raw = v
	}

	deckID, err := strconv.Atoi(raw)
	if err != nil || deckID <= 0 {
		return 0, domainerrors.Validationf("invalid deck id %q", raw)
	}
	return deckID, nil
}

// refresh re-annotates cached subtitles that use vid. A session that cannot
// refresh keeps its old annotation, so failures are only logged.
func (s *Server) refresh(ctx context.Context, vid int) {
	if err := s.deps.Sessions.RefreshVocabulary(ctx, vid); err != nil {
		s.logger.Warn("refresh after card change failed", "vid", vid, "error", err)
	}
}
