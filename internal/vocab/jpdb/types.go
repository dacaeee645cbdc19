package jpdb

import (
	"fmt"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
	"github.com/subtitlelens/subtitlelens-server/internal/grouping"
)

// Limit is the largest parse payload, in bytes of the joined texts.
var Limit = grouping.Limit{Unit: grouping.UnitBytes, Max: 16384}

// Special deck ids.
const (
	DeckNeverForget = 1879048193
	DeckBlacklist   = 1879048194
)

// Batch is the decoded result of a batch parse: one token list per input
// text, all indexing into one shared vocabulary table.
type Batch struct {
	Tokens     [][]domain.VocabularyToken
	Vocabulary []domain.VocabularyEntry
}

// Deck is a user deck.
type Deck struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Grade is a review answer.
type Grade string

// Review grades.
const (
	GradeNothing     Grade = "nothing"
	GradeSomething   Grade = "something"
	GradeHard        Grade = "hard"
	GradeGood        Grade = "good"
	GradeEasy        Grade = "easy"
	GradePass        Grade = "pass"
	GradeFail        Grade = "fail"
	GradeKnown       Grade = "known"
	GradeUnknown     Grade = "unknown"
	GradeNeverForget Grade = "never_forget"
	GradeBlacklist   Grade = "blacklist"
)

var gradeCodes = map[Grade]string{
	GradeNothing:     "1",
	GradeSomething:   "2",
	GradeHard:        "3",
	GradeGood:        "4",
	GradeEasy:        "5",
	GradePass:        "p",
	GradeFail:        "f",
	GradeKnown:       "k",
	GradeUnknown:     "n",
	GradeNeverForget: "w",
	GradeBlacklist:   "-1",
}

// Code returns the wire value for the grade.
func (g Grade) Code() (string, error) {
	code, ok := gradeCodes[g]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidGrade, g)
	}
	return code, nil
}

// Fields requested from /parse. Decoding is positional over these lists.
var (
	tokenFields      = []string{"vocabulary_index", "position", "length", "furigana"}
	vocabularyFields = []string{"vid", "sid", "rid", "spelling", "reading", "frequency_rank", "meanings", "card_state", "part_of_speech"}
)
