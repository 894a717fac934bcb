package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CardType classifies what kind of learning content a card carries.
type CardType string

// Supported card types.
const (
	CardTypeVocabulary CardType = "vocabulary"
	CardTypeVerb       CardType = "verb"
	CardTypePhrase     CardType = "phrase"
	CardTypeGrammar    CardType = "grammar"
)

// DeliveryState tracks whether a card has been pushed to Anki.
type DeliveryState string

// Possible delivery states.
const (
	DeliveryStatePending   DeliveryState = "pending"
	DeliveryStateDelivered DeliveryState = "delivered"
	DeliveryStateFailed    DeliveryState = "failed"
)

// Card represents one flashcard record owned by a single user. Cards are
// created in the pending delivery state and later driven to a terminal
// state by the sync worker.
type Card struct {
	ID                 uuid.UUID     `json:"id"`
	OwnerID            uuid.UUID     `json:"owner_id"`
	Type               CardType      `json:"type"`
	Front              string        `json:"front"`
	Back               string        `json:"back"`
	Context            string        `json:"context,omitempty"`
	ContextTranslation string        `json:"context_translation,omitempty"`
	Tags               []string      `json:"tags"`
	Metadata           Metadata      `json:"metadata,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	DeliveryState      DeliveryState `json:"delivery_state"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// CardInput is the raw structured input accepted by the creation pipeline.
// Optional fields left absent default to empty values, never null.
type CardInput struct {
	Type               string   `json:"cardType"`
	Front              string   `json:"front"`
	Back               string   `json:"back"`
	Context            string   `json:"context,omitempty"`
	ContextTranslation string   `json:"contextTranslation,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Metadata           Metadata `json:"metadata,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// NewCard validates and normalizes raw input into a Card draft owned by
// ownerID. It generates the card ID, sets the delivery state to pending,
// and sets the creation/update timestamps. Returns a validation rejection
// error if the input is invalid; no side effects occur on rejection.
func NewCard(ownerID uuid.UUID, input CardInput) (*Card, error) {
	if ownerID == uuid.Nil {
		return nil, ErrCardOwnerEmpty
	}

	cardType := CardType(strings.TrimSpace(input.Type))
	if !isValidCardType(cardType) {
		return nil, ErrMissingType
	}

	front := strings.TrimSpace(input.Front)
	if front == "" {
		return nil, ErrMissingFront
	}

	back := strings.TrimSpace(input.Back)
	if back == "" {
		return nil, ErrMissingBack
	}

	if err := input.Metadata.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	card := &Card{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		Type:               cardType,
		Front:              front,
		Back:               back,
		Context:            strings.TrimSpace(input.Context),
		ContextTranslation: strings.TrimSpace(input.ContextTranslation),
		Tags:               normalizeTags(input.Tags),
		Metadata:           input.Metadata,
		Notes:              strings.TrimSpace(input.Notes),
		DeliveryState:      DeliveryStatePending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	return card, nil
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.OwnerID == uuid.Nil {
		return ErrCardOwnerEmpty
	}

	if !isValidCardType(c.Type) {
		return ErrMissingType
	}

	if strings.TrimSpace(c.Front) == "" {
		return ErrMissingFront
	}

	if strings.TrimSpace(c.Back) == "" {
		return ErrMissingBack
	}

	if err := c.Metadata.Validate(); err != nil {
		return err
	}

	if !isValidDeliveryState(c.DeliveryState) {
		return ErrInvalidDeliveryState
	}

	return nil
}

// MarkDelivered transitions the card from pending to delivered.
func (c *Card) MarkDelivered() error {
	return c.transition(DeliveryStateDelivered)
}

// MarkFailed transitions the card from pending to failed.
func (c *Card) MarkFailed() error {
	return c.transition(DeliveryStateFailed)
}

// ResetForRetry moves a failed card back to pending. This is the explicit
// operator-triggered retry path; it is the only route out of the failed
// state.
func (c *Card) ResetForRetry() error {
	if c.DeliveryState != DeliveryStateFailed {
		return ErrInvalidTransition
	}
	c.DeliveryState = DeliveryStatePending
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// transition applies a pending-to-terminal state change.
func (c *Card) transition(target DeliveryState) error {
	if c.DeliveryState != DeliveryStatePending {
		return ErrInvalidTransition
	}
	c.DeliveryState = target
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidCardType checks if the given type is a supported CardType.
func isValidCardType(t CardType) bool {
	switch t {
	case CardTypeVocabulary, CardTypeVerb, CardTypePhrase, CardTypeGrammar:
		return true
	default:
		return false
	}
}

// isValidDeliveryState checks if the given state is a valid DeliveryState.
func isValidDeliveryState(s DeliveryState) bool {
	switch s {
	case DeliveryStatePending, DeliveryStateDelivered, DeliveryStateFailed:
		return true
	default:
		return false
	}
}

// normalizeTags trims whitespace and drops empty entries while preserving
// the caller's ordering for display.
func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		normalized = append(normalized, tag)
	}
	return normalized
}
