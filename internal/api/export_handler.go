package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lexiconlabs/ankibridge/internal/api/shared"
	"github.com/lexiconlabs/ankibridge/internal/platform/logger"
	"github.com/lexiconlabs/ankibridge/internal/service"
)

// ExportHandler serves the API-key protected bulk export of all cards.
type ExportHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(cardService service.CardService, log *slog.Logger) *ExportHandler {
	if log == nil {
		log = slog.Default()
	}

	return &ExportHandler{
		cardService: cardService,
		logger:      log.With(slog.String("component", "export_handler")),
	}
}

// ExportCards handles GET /api/export requests. Pages are 1-based, 100
// cards each, newest first.
func (h *ExportHandler) ExportCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid page parameter")
			return
		}
		page = parsed
	}

	cards, err := h.cardService.ExportCards(r.Context(), page)
	if err != nil {
		log.Error("export failed",
			slog.Int("page", page),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	out := make([]ExportCardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardToExportResponse(card))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ExportResponse{
		Page:  page,
		Count: len(out),
		Cards: out,
	})
}
