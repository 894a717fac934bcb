package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/domain"
)

// CardStore defines the interface for card data persistence.
//
// A card row has exactly one writer role per lifecycle phase: the creation
// pipeline inserts it once, and the sync worker later flips its delivery
// state. The state-changing methods are conditional updates gated on the
// current state so that concurrent workers cannot record an outcome twice.
type CardStore interface {
	// Create saves a new card to the store as a single atomic row insert.
	// The card must be valid according to domain validation rules.
	// Returns ErrInvalidEntity wrapping the validation error if it is not.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// ListByOwner retrieves up to limit cards belonging to ownerID, newest
	// first. If delivered is non-nil the result is filtered to cards whose
	// delivery state is terminal (true) or still pending (false).
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int, delivered *bool) ([]*domain.Card, error)

	// ListPending retrieves up to limit cards in the pending delivery state,
	// oldest first, so staleness stays bounded.
	ListPending(ctx context.Context, limit int) ([]*domain.Card, error)

	// ListAll retrieves up to limit cards across all owners, newest first,
	// skipping offset rows. Used by the export surface.
	ListAll(ctx context.Context, limit, offset int) ([]*domain.Card, error)

	// Delete removes a card by its ID and returns the removed card.
	// Permitted in any delivery state. Returns ErrCardNotFound if the card
	// does not exist.
	Delete(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// MarkDelivered transitions a pending card to delivered.
	// Returns ErrUpdateFailed if the card is missing or no longer pending.
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a pending card to failed.
	// Returns ErrUpdateFailed if the card is missing or no longer pending.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// ResetForRetry transitions a failed card back to pending. This is the
	// operator-triggered retry path. Returns ErrUpdateFailed if the card is
	// missing or not failed.
	ResetForRetry(ctx context.Context, id uuid.UUID) error
}
