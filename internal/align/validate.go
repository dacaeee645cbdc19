package align

import (
	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

// Validate checks a batch lookup against the texts it was issued for.
func Validate(texts []string, tokens [][]domain.VocabularyToken, vocabulary []domain.VocabularyEntry) error {
	if len(tokens) != len(texts) {
		return malformed("%d token lists for %d subtitles", len(tokens), len(texts))
	}
	if len(vocabulary) == 0 {
		return malformed("empty vocabulary table")
	}
	return nil
}
