package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/api/shared"
	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/platform/logger"
	"github.com/lexiconlabs/ankibridge/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CardHandler handles card-related HTTP requests
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(cardService service.CardService, log *slog.Logger) *CardHandler {
	if log == nil {
		log = slog.Default()
	}

	return &CardHandler{
		cardService: cardService,
		logger:      log.With(slog.String("component", "card_handler")),
	}
}

// CreateCard handles POST /api/cards requests. The creation pipeline's
// progress events are streamed to the client as NDJSON, one event per
// line, flushed as they occur.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	var input domain.CardInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	events := h.cardService.CreateCard(r.Context(), ownerID, input)
	for event := range events {
		if err := encoder.Encode(event); err != nil {
			// The client went away mid-stream. The pipeline keeps running
			// to its terminal event regardless; drain so the channel closes.
			log.Debug("progress stream write failed",
				slog.String("error", err.Error()))
			for range events {
			}
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// GetCard handles GET /api/cards/{id} requests. Unlike the creation
// summary it returns the full card, metadata and notes included.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	cardID, ok := cardIDFromURL(w, r)
	if !ok {
		return
	}

	card, err := h.cardService.GetCard(r.Context(), ownerID, cardID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// ListCards handles GET /api/cards requests. The optional delivered query
// parameter filters for settled (true) or pending (false) cards.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	var delivered *bool
	if raw := r.URL.Query().Get("delivered"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid delivered parameter")
			return
		}
		delivered = &parsed
	}

	cards, err := h.cardService.ListCards(r.Context(), ownerID, limit, delivered)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardsToResponses(cards))
}

// DeleteCard handles DELETE /api/cards/{id} requests. Deleting is allowed
// in any delivery state and returns the removed card.
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	cardID, ok := cardIDFromURL(w, r)
	if !ok {
		return
	}

	deleted, err := h.cardService.DeleteCard(r.Context(), ownerID, cardID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(deleted))
}

// RetryCard handles POST /api/cards/{id}/retry requests, resetting a
// failed card to pending so the sync worker picks it up again.
func (h *CardHandler) RetryCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwner(w, r, log)
	if !ok {
		return
	}

	cardID, ok := cardIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.cardService.RetryCard(r.Context(), ownerID, cardID); err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireOwner extracts the authenticated owner from the request context.
// A missing or nil ID means the auth middleware was bypassed; the request
// is rejected.
func requireOwner(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	ownerID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || ownerID == uuid.Nil {
		log.Warn("owner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return ownerID, true
}

// cardIDFromURL parses the {id} route parameter.
func cardIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID")
		return uuid.Nil, false
	}
	return cardID, true
}
