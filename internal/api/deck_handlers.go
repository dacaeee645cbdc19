package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/vocab/jpdb"
)

func (s *Server) registerDeckRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDecks",
		Method:      http.MethodGet,
		Path:        "/api/v1/decks",
		Summary:     "List decks",
		Description: "Returns the user's jpdb decks",
		Tags:        []string{"Decks"},
	}, s.handleListDecks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addToDeck",
		Method:        http.MethodPost,
		Path:          "/api/v1/decks/{id}/vocabulary",
		Summary:       "Add to deck",
		Description:   "Adds a card to a deck by id, or to the mining, never-forget or blacklist deck",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleAddToDeck)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeFromDeck",
		Method:        http.MethodDelete,
		Path:          "/api/v1/decks/{id}/vocabulary",
		Summary:       "Remove from deck",
		Description:   "Removes a card from a deck",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveFromDeck)

	huma.Register(s.api, huma.Operation{
		OperationID:   "setCardSentence",
		Method:        http.MethodPost,
		Path:          "/api/v1/vocabulary/sentence",
		Summary:       "Set card sentence",
		Description:   "Stores the subtitle as the card's example sentence",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleSetSentence)

	huma.Register(s.api, huma.Operation{
		OperationID:   "reviewCard",
		Method:        http.MethodPost,
		Path:          "/api/v1/reviews",
		Summary:       "Review card",
		Description:   "Grades a card and re-annotates subtitles that use it",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleReview)
}

// === DTOs ===

// DecksOutput wraps the deck list.
type DecksOutput struct {
	Body struct {
		Decks []jpdb.Deck `json:"decks" doc:"User decks"`
	}
}

// CardRef identifies a card.
type CardRef struct {
	VID int `json:"vid" validate:"required,gt=0" doc:"Vocabulary ID"`
	SID int `json:"sid" validate:"gte=0" doc:"Spelling ID"`
}

// DeckCardInput contains parameters for deck membership changes.
type DeckCardInput struct {
	DeckID string `path:"id" doc:"Deck id or mining, never-forget, blacklist"`
	Body   CardRef
}

// SentenceRequest sets a card's example sentence.
type SentenceRequest struct {
	CardRef
	Sentence    string `json:"sentence" validate:"subtitle" doc:"Example sentence"`
	Translation string `json:"translation,omitempty" doc:"Optional translation"`
}

// SentenceInput wraps the sentence request.
type SentenceInput struct {
	Body SentenceRequest
}

// ReviewRequest grades a card.
type ReviewRequest struct {
	CardRef
	Grade string `json:"grade" validate:"required,review_grade" doc:"nothing, something, hard, good, easy, pass, fail, known, unknown, never_forget or blacklist"`
}

// ReviewInput wraps the review request.
type ReviewInput struct {
	Body ReviewRequest
}

// === Handlers ===

func (s *Server) handleListDecks(ctx context.Context, _ *struct{}) (*DecksOutput, error) {
	decks, err := s.deps.Decks.ListDecks(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	out := &DecksOutput{}
	out.Body.Decks = decks
	return out, nil
}

func (s *Server) handleAddToDeck(ctx context.Context, input *DeckCardInput) (*struct{}, error) {
	if err := s.deps.Validator.Validate(input.Body); err != nil {
		return nil, err
	}
	deckID, err := s.resolveDeck(ctx, input.DeckID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Decks.AddToDeck(ctx, deckID, input.Body.VID, input.Body.SID); err != nil {
		return nil, providerError(err)
	}
	s.refresh(ctx, input.Body.VID)
	return nil, nil
}

func (s *Server) handleRemoveFromDeck(ctx context.Context, input *DeckCardInput) (*struct{}, error) {
	if err := s.deps.Validator.Validate(input.Body); err != nil {
		return nil, err
	}
	deckID, err := s.resolveDeck(ctx, input.DeckID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Decks.RemoveFromDeck(ctx, deckID, input.Body.VID, input.Body.SID); err != nil {
		return nil, providerError(err)
	}
	s.refresh(ctx, input.Body.VID)
	return nil, nil
}

func (s *Server) handleSetSentence(ctx context.Context, input *SentenceInput) (*struct{}, error) {
	if err := s.deps.Validator.Validate(input.Body); err != nil {
		return nil, err
	}
	b := input.Body
	if err := s.deps.Decks.SetCardSentence(ctx, b.VID, b.SID, b.Sentence, b.Translation); err != nil {
		return nil, providerError(err)
	}
	return nil, nil
}

func (s *Server) handleReview(ctx context.Context, input *ReviewInput) (*struct{}, error) {
	if err := s.deps.Validator.Validate(input.Body); err != nil {
		return nil, err
	}
	b := input.Body
	if err := s.deps.Decks.Review(ctx, b.VID, b.SID, jpdb.Grade(b.Grade)); err != nil {
		return nil, providerError(err)
	}
	s.refresh(ctx, b.VID)
	return nil, nil
}
