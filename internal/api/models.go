package api

import (
	"time"

	"github.com/lexiconlabs/ankibridge/internal/domain"
)

// CardResponse represents the response data for a card
type CardResponse struct {
	ID                 string          `json:"id"`
	Type               string          `json:"cardType"`
	Front              string          `json:"front"`
	Back               string          `json:"back"`
	Context            string          `json:"context,omitempty"`
	ContextTranslation string          `json:"contextTranslation,omitempty"`
	Tags               []string        `json:"tags"`
	Metadata           domain.Metadata `json:"metadata,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	DeliveryState      string          `json:"deliveryState"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// ExportCardResponse is the export projection of a card. The row ID and
// owner are stripped; exported decks are shared artifacts and must not
// leak account identifiers.
type ExportCardResponse struct {
	Type               string          `json:"cardType"`
	Front              string          `json:"front"`
	Back               string          `json:"back"`
	Context            string          `json:"context,omitempty"`
	ContextTranslation string          `json:"contextTranslation,omitempty"`
	Tags               []string        `json:"tags"`
	Metadata           domain.Metadata `json:"metadata,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	DeliveryState      string          `json:"deliveryState"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// ExportResponse wraps one page of the export listing.
type ExportResponse struct {
	Page  int                  `json:"page"`
	Count int                  `json:"count"`
	Cards []ExportCardResponse `json:"cards"`
}

// cardToResponse transforms a domain card into its API representation.
func cardToResponse(card *domain.Card) CardResponse {
	return CardResponse{
		ID:                 card.ID.String(),
		Type:               string(card.Type),
		Front:              card.Front,
		Back:               card.Back,
		Context:            card.Context,
		ContextTranslation: card.ContextTranslation,
		Tags:               card.Tags,
		Metadata:           card.Metadata,
		Notes:              card.Notes,
		DeliveryState:      string(card.DeliveryState),
		CreatedAt:          card.CreatedAt,
		UpdatedAt:          card.UpdatedAt,
	}
}

// cardToExportResponse transforms a domain card into its export projection.
func cardToExportResponse(card *domain.Card) ExportCardResponse {
	return ExportCardResponse{
		Type:               string(card.Type),
		Front:              card.Front,
		Back:               card.Back,
		Context:            card.Context,
		ContextTranslation: card.ContextTranslation,
		Tags:               card.Tags,
		Metadata:           card.Metadata,
		Notes:              card.Notes,
		DeliveryState:      string(card.DeliveryState),
		CreatedAt:          card.CreatedAt,
	}
}

// cardsToResponses transforms a list of domain cards.
func cardsToResponses(cards []*domain.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardToResponse(card))
	}
	return out
}
