package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/platform/logger"
	"github.com/lexiconlabs/ankibridge/internal/store"
)

// exportPageSize is the fixed page size of the bulk export listing.
const exportPageSize = 100

// progressBufferSize is the buffered capacity of a progress stream. It
// covers the longest possible event sequence, so the producer goroutine
// can always run to completion even when the caller abandons the stream.
const progressBufferSize = 4

// CardService provides card-related operations.
type CardService interface {
	// CreateCard runs the staged creation pipeline for one card. The
	// returned channel yields progress events in emission order and is
	// closed after exactly one terminal event. A successful terminal event
	// means exactly one card row was persisted in the pending state; a
	// failure terminal event means no row was written.
	CreateCard(ctx context.Context, ownerID uuid.UUID, input domain.CardInput) <-chan ProgressEvent

	// GetCard retrieves one of the owner's cards, including the metadata
	// and notes omitted from creation summaries.
	GetCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error)

	// ListCards retrieves the owner's cards, newest first. The optional
	// delivered filter selects terminal-state (true) or pending (false)
	// cards.
	ListCards(ctx context.Context, ownerID uuid.UUID, limit int, delivered *bool) ([]*domain.Card, error)

	// DeleteCard removes one of the owner's cards, in any delivery state,
	// and returns the removed card.
	DeleteCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error)

	// RetryCard resets one of the owner's failed cards to pending so the
	// sync worker picks it up again.
	RetryCard(ctx context.Context, ownerID, cardID uuid.UUID) error

	// ExportCards lists cards across all owners for the bulk export
	// surface, newest first, exportPageSize per page (1-based).
	ExportCards(ctx context.Context, page int) ([]*domain.Card, error)
}

// cardServiceImpl implements the CardService interface
type cardServiceImpl struct {
	cardStore store.CardStore
	logger    *slog.Logger
}

// NewCardService creates a new CardService.
// It returns an error if any of the required dependencies are nil.
func NewCardService(cardStore store.CardStore, logger *slog.Logger) (CardService, error) {
	if cardStore == nil {
		return nil, &CardServiceError{
			Operation: "create_service",
			Message:   "cardStore cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &cardServiceImpl{
		cardStore: cardStore,
		logger:    logger.With(slog.String("component", "card_service")),
	}, nil
}

// CreateCard implements CardService.CreateCard.
func (s *cardServiceImpl) CreateCard(
	ctx context.Context,
	ownerID uuid.UUID,
	input domain.CardInput,
) <-chan ProgressEvent {
	events := make(chan ProgressEvent, progressBufferSize)

	go func() {
		defer close(events)
		s.runCreatePipeline(ctx, ownerID, input, events)
	}()

	return events
}

// runCreatePipeline emits the staged progress sequence. Events are sent on
// a channel buffered for the whole sequence, so sends never block and the
// sequence always runs to its terminal event even if the caller stops
// draining.
func (s *cardServiceImpl) runCreatePipeline(
	ctx context.Context,
	ownerID uuid.UUID,
	input domain.CardInput,
	events chan<- ProgressEvent,
) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	events <- ProgressEvent{
		Status: ProgressStatusLoading,
		Text:   "Validating card data...",
	}

	card, err := domain.NewCard(ownerID, input)
	if err != nil {
		log.Warn("card input rejected",
			slog.String("owner_id", ownerID.String()),
			slog.String("reason", domain.RejectionReason(err)),
			slog.String("error", err.Error()))
		events <- failureEvent(err)
		return
	}

	events <- ProgressEvent{
		Status: ProgressStatusLoading,
		Text:   fmt.Sprintf("Preparing %s card for %q...", card.Type, card.Front),
	}

	events <- ProgressEvent{
		Status: ProgressStatusLoading,
		Text:   "Saving card to database...",
	}

	// The insert is deliberately detached from the request's cancellation:
	// a caller that disconnects mid-stream must leave either a complete
	// row or none, never an aborted write racing the response.
	if err := s.cardStore.Create(context.WithoutCancel(ctx), card); err != nil {
		log.Error("failed to persist card",
			slog.String("owner_id", ownerID.String()),
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		events <- failureEvent(err)
		return
	}

	log.Info("card created",
		slog.String("card_id", card.ID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.String("card_type", string(card.Type)))

	cardID := card.ID
	events <- ProgressEvent{
		Status: ProgressStatusSuccess,
		Text:   fmt.Sprintf("Anki card created successfully! %q → %q", card.Front, card.Back),
		CardID: &cardID,
		Card:   summarize(card),
	}
}

// failureEvent builds the terminal error event. Validation rejections and
// persistence failures share the same shape; callers can only tell them
// apart by the message.
func failureEvent(err error) ProgressEvent {
	return ProgressEvent{
		Status: ProgressStatusError,
		Text:   "Sorry, the Anki card could not be created. Please try again.",
		Error:  err.Error(),
	}
}

// GetCard implements CardService.GetCard.
func (s *cardServiceImpl) GetCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.ownedCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, NewCardServiceError("get_card", "failed to get card", err)
	}
	return card, nil
}

// ListCards implements CardService.ListCards.
func (s *cardServiceImpl) ListCards(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
	delivered *bool,
) ([]*domain.Card, error) {
	cards, err := s.cardStore.ListByOwner(ctx, ownerID, limit, delivered)
	if err != nil {
		return nil, NewCardServiceError("list_cards", "failed to list cards", err)
	}
	return cards, nil
}

// DeleteCard implements CardService.DeleteCard.
func (s *cardServiceImpl) DeleteCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.ownedCard(ctx, ownerID, cardID); err != nil {
		return nil, NewCardServiceError("delete_card", "failed to delete card", err)
	}

	deleted, err := s.cardStore.Delete(ctx, cardID)
	if err != nil {
		return nil, NewCardServiceError("delete_card", "failed to delete card", err)
	}

	log.Info("card deleted",
		slog.String("card_id", cardID.String()),
		slog.String("owner_id", ownerID.String()))
	return deleted, nil
}

// RetryCard implements CardService.RetryCard.
func (s *cardServiceImpl) RetryCard(ctx context.Context, ownerID, cardID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.ownedCard(ctx, ownerID, cardID)
	if err != nil {
		return NewCardServiceError("retry_card", "failed to retry card", err)
	}

	if card.DeliveryState != domain.DeliveryStateFailed {
		return ErrNotRetryable
	}

	if err := s.cardStore.ResetForRetry(ctx, cardID); err != nil {
		return NewCardServiceError("retry_card", "failed to reset card for retry", err)
	}

	log.Info("card reset for retry",
		slog.String("card_id", cardID.String()),
		slog.String("owner_id", ownerID.String()))
	return nil
}

// ExportCards implements CardService.ExportCards.
func (s *cardServiceImpl) ExportCards(ctx context.Context, page int) ([]*domain.Card, error) {
	if page < 1 {
		page = 1
	}

	cards, err := s.cardStore.ListAll(ctx, exportPageSize, (page-1)*exportPageSize)
	if err != nil {
		return nil, NewCardServiceError("export_cards", "failed to export cards", err)
	}
	return cards, nil
}

// ownedCard loads a card and enforces ownership. A card owned by someone
// else is reported as not found.
func (s *cardServiceImpl) ownedCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cardStore.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if card.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	return card, nil
}
