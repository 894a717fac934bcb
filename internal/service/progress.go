package service

import (
	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/domain"
)

// ProgressStatus classifies a progress event.
type ProgressStatus string

// Progress event statuses. A stream contains zero or more loading events
// followed by exactly one terminal event (success or error).
const (
	ProgressStatusLoading ProgressStatus = "loading"
	ProgressStatusSuccess ProgressStatus = "success"
	ProgressStatusError   ProgressStatus = "error"
)

// CardSummary is the compact projection of a card carried by the success
// event. Metadata and notes are intentionally omitted to keep the
// caller-visible summary small; they are retrievable separately by ID.
type CardSummary struct {
	Type    domain.CardType `json:"type"`
	Front   string          `json:"front"`
	Back    string          `json:"back"`
	Context string          `json:"context,omitempty"`
	Tags    []string        `json:"tags"`
}

// ProgressEvent is one notification in the creation pipeline's stream.
type ProgressEvent struct {
	Status ProgressStatus `json:"status"`
	Text   string         `json:"text"`
	CardID *uuid.UUID     `json:"cardId,omitempty"`
	Card   *CardSummary   `json:"card,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Status == ProgressStatusSuccess || e.Status == ProgressStatusError
}

// summarize builds the success-event projection of a card.
func summarize(card *domain.Card) *CardSummary {
	return &CardSummary{
		Type:    card.Type,
		Front:   card.Front,
		Back:    card.Back,
		Context: card.Context,
		Tags:    card.Tags,
	}
}
