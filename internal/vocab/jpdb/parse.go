package jpdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/subtitlelens/subtitlelens-server/internal/domain"
)

type parseRequest struct {
	Text                   []string `json:"text"`
	TokenFields            []string `json:"token_fields"`
	VocabularyFields       []string `json:"vocabulary_fields"`
	PositionLengthEncoding string   `json:"position_length_encoding"`
}

type parseResponse struct {
	Tokens     [][][]json.RawMessage `json:"tokens"`
	Vocabulary [][]json.RawMessage   `json:"vocabulary"`
}

// LookupBatch parses texts in one request. Positions in the result are UTF-16
// offsets into each text.
func (c *Client) LookupBatch(ctx context.Context, texts []string) (*Batch, error) {
	req := parseRequest{
		Text:                   texts,
		TokenFields:            tokenFields,
		VocabularyFields:       vocabularyFields,
		PositionLengthEncoding: "utf16",
	}

	var resp parseResponse
	if err := c.post(ctx, "parse", "parse", req, &resp); err != nil {
		return nil, err
	}

	batch, err := decodeBatch(resp)
	if err != nil {
		return nil, &Error{Op: "parse", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return batch, nil
}

func decodeBatch(resp parseResponse) (*Batch, error) {
	batch := &Batch{
		Tokens:     make([][]domain.VocabularyToken, len(resp.Tokens)),
		Vocabulary: make([]domain.VocabularyEntry, len(resp.Vocabulary)),
	}

	for i, list := range resp.Tokens {
		batch.Tokens[i] = make([]domain.VocabularyToken, 0, len(list))
		for j, raw := range list {
			tok, err := decodeToken(raw)
			if err != nil {
				return nil, fmt.Errorf("token %d of text %d: %w", j, i, err)
			}
			batch.Tokens[i] = append(batch.Tokens[i], tok)
		}
	}

	for i, raw := range resp.Vocabulary {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("vocabulary %d: %w", i, err)
		}
		batch.Vocabulary[i] = entry
	}

	return batch, nil
}

func decodeToken(raw []json.RawMessage) (domain.VocabularyToken, error) {
	if len(raw) < 3 {
		return domain.VocabularyToken{}, fmt.Errorf("expected %d fields, got %d", len(tokenFields), len(raw))
	}
	var tok domain.VocabularyToken
	if err := decodeFields(raw, &tok.VocabularyIndex, &tok.Position, &tok.Length); err != nil {
		return domain.VocabularyToken{}, err
	}
	return tok, nil
}

func decodeEntry(raw []json.RawMessage) (domain.VocabularyEntry, error) {
	if len(raw) != len(vocabularyFields) {
		return domain.VocabularyEntry{}, fmt.Errorf("expected %d fields, got %d", len(vocabularyFields), len(raw))
	}

	var (
		e         domain.VocabularyEntry
		meanings  stringOrList
		cardState stringOrList
		pos       stringOrList
	)
	err := decodeFields(raw,
		&e.VID, &e.SID, &e.RID, &e.Spelling, &e.Reading, &e.FrequencyRank,
		&meanings, &cardState, &pos)
	if err != nil {
		return domain.VocabularyEntry{}, err
	}
	e.Meanings = meanings
	e.CardState = cardState
	e.PartOfSpeech = pos
	return e, nil
}

func decodeFields(raw []json.RawMessage, dst ...any) error {
	for i, d := range dst {
		if err := json.Unmarshal(raw[i], d); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

// stringOrList accepts a JSON string, a list of strings or null.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}
