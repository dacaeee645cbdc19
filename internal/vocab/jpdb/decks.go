package jpdb

import (
	"context"
	"encoding/json"
	"fmt"
)

type deckVocabularyRequest struct {
	ID         int      `json:"id"`
	Vocabulary [][2]int `json:"vocabulary"`
}

// AddToDeck adds the (vid, sid) pair to a deck.
func (c *Client) AddToDeck(ctx context.Context, deckID, vid, sid int) error {
	req := deckVocabularyRequest{ID: deckID, Vocabulary: [][2]int{{vid, sid}}}
	return c.post(ctx, "add-vocabulary", "deck/add-vocabulary", req, nil)
}

// RemoveFromDeck removes the (vid, sid) pair from a deck.
func (c *Client) RemoveFromDeck(ctx context.Context, deckID, vid, sid int) error {
	req := deckVocabularyRequest{ID: deckID, Vocabulary: [][2]int{{vid, sid}}}
	return c.post(ctx, "remove-vocabulary", "deck/remove-vocabulary", req, nil)
}

type sentenceRequest struct {
	VID         int    `json:"vid"`
	SID         int    `json:"sid"`
	Sentence    string `json:"sentence,omitempty"`
	Translation string `json:"translation,omitempty"`
}

// SetCardSentence sets the example sentence and its translation on a card.
// Empty values are left untouched on the server.
func (c *Client) SetCardSentence(ctx context.Context, vid, sid int, sentence, translation string) error {
	req := sentenceRequest{VID: vid, SID: sid, Sentence: sentence, Translation: translation}
	return c.post(ctx, "set-card-sentence", "set-card-sentence", req, nil)
}

type reviewRequest struct {
	VID   int    `json:"vid"`
	SID   int    `json:"sid"`
	Grade string `json:"grade"`
}

// Review submits a review grade for a card.
func (c *Client) Review(ctx context.Context, vid, sid int, grade Grade) error {
	code, err := grade.Code()
	if err != nil {
		return wrapError("review", err)
	}
	return c.post(ctx, "review", "review", reviewRequest{VID: vid, SID: sid, Grade: code}, nil)
}

type listDecksRequest struct {
	Fields []string `json:"fields"`
}

type listDecksResponse struct {
	Decks [][]json.RawMessage `json:"decks"`
}

// ListDecks returns the user's decks.
func (c *Client) ListDecks(ctx context.Context) ([]Deck, error) {
	var resp listDecksResponse
	if err := c.post(ctx, "list-user-decks", "list-user-decks", listDecksRequest{Fields: []string{"id", "name"}}, &resp); err != nil {
		return nil, err
	}

	decks := make([]Deck, 0, len(resp.Decks))
	for i, raw := range resp.Decks {
		if len(raw) != 2 {
			return nil, &Error{Op: "list-user-decks", Err: fmt.Errorf("%w: deck %d has %d fields", ErrMalformed, i, len(raw))}
		}
		var d Deck
		if err := decodeFields(raw, &d.ID, &d.Name); err != nil {
			return nil, &Error{Op: "list-user-decks", Err: fmt.Errorf("%w: deck %d: %v", ErrMalformed, i, err)}
		}
		decks = append(decks, d)
	}
	return decks, nil
}
