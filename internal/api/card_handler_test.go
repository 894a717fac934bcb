package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/api/shared"
	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCardService returns scripted results for handler tests.
type fakeCardService struct {
	events []service.ProgressEvent

	card    *domain.Card
	cards   []*domain.Card
	err     error
	lastIn  domain.CardInput
	limit   int
	deliv   *bool
	page    int
	retried uuid.UUID
}

func (f *fakeCardService) CreateCard(
	ctx context.Context,
	ownerID uuid.UUID,
	input domain.CardInput,
) <-chan service.ProgressEvent {
	f.lastIn = input
	out := make(chan service.ProgressEvent, len(f.events))
	for _, event := range f.events {
		out <- event
	}
	close(out)
	return out
}

func (f *fakeCardService) GetCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	return f.card, f.err
}

func (f *fakeCardService) ListCards(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
	delivered *bool,
) ([]*domain.Card, error) {
	f.limit = limit
	f.deliv = delivered
	return f.cards, f.err
}

func (f *fakeCardService) DeleteCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	return f.card, f.err
}

func (f *fakeCardService) RetryCard(ctx context.Context, ownerID, cardID uuid.UUID) error {
	f.retried = cardID
	return f.err
}

func (f *fakeCardService) ExportCards(ctx context.Context, page int) ([]*domain.Card, error) {
	f.page = page
	return f.cards, f.err
}

func testCard(t *testing.T) *domain.Card {
	t.Helper()
	card, err := domain.NewCard(uuid.New(), domain.CardInput{
		Type:  "vocabulary",
		Front: "casa",
		Back:  "house",
		Tags:  []string{"spanish"},
	})
	require.NoError(t, err)
	return card
}

// newTestRouter mounts the handler on the card routes with an owner ID
// already present in the request context, standing in for auth middleware.
func newTestRouter(handler *CardHandler, ownerID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), shared.UserIDContextKey, ownerID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/cards", handler.CreateCard)
	r.Get("/api/cards", handler.ListCards)
	r.Get("/api/cards/{id}", handler.GetCard)
	r.Delete("/api/cards/{id}", handler.DeleteCard)
	r.Post("/api/cards/{id}/retry", handler.RetryCard)
	return r
}

func TestCreateCardStreamsNDJSON(t *testing.T) {
	t.Parallel()
	cardID := uuid.New()
	svc := &fakeCardService{
		events: []service.ProgressEvent{
			{Status: service.ProgressStatusLoading, Text: "Validating card data..."},
			{Status: service.ProgressStatusLoading, Text: `Preparing vocabulary card for "casa"...`},
			{Status: service.ProgressStatusLoading, Text: "Saving card to database..."},
			{
				Status: service.ProgressStatusSuccess,
				Text:   `Anki card created successfully! "casa" → "house"`,
				CardID: &cardID,
			},
		},
	}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	body := `{"cardType":"vocabulary","front":"casa","back":"house","tags":["spanish"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/cards", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "casa", svc.lastIn.Front)

	// One JSON document per line, in pipeline order.
	var got []service.ProgressEvent
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		var event service.ProgressEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		got = append(got, event)
	}
	require.Len(t, got, 4)
	assert.Equal(t, service.ProgressStatusLoading, got[0].Status)
	assert.Equal(t, service.ProgressStatusSuccess, got[3].Status)
	require.NotNil(t, got[3].CardID)
	assert.Equal(t, cardID, *got[3].CardID)
}

func TestCreateCardRejectsInvalidBody(t *testing.T) {
	t.Parallel()
	router := newTestRouter(NewCardHandler(&fakeCardService{}, nil), uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/cards", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCardRequiresOwner(t *testing.T) {
	t.Parallel()
	handler := NewCardHandler(&fakeCardService{}, nil)
	r := chi.NewRouter()
	r.Post("/api/cards", handler.CreateCard)

	req := httptest.NewRequest(http.MethodPost, "/api/cards", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListCardsLimitHandling(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{name: "default", query: "", wantStatus: http.StatusOK, wantLimit: defaultListLimit},
		{name: "explicit", query: "?limit=10", wantStatus: http.StatusOK, wantLimit: 10},
		{name: "capped", query: "?limit=9999", wantStatus: http.StatusOK, wantLimit: maxListLimit},
		{name: "zero", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "garbage", query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeCardService{}
			router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

			req := httptest.NewRequest(http.MethodGet, "/api/cards"+tc.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantLimit, svc.limit)
			}
		})
	}
}

func TestListCardsDeliveredFilter(t *testing.T) {
	t.Parallel()
	svc := &fakeCardService{cards: []*domain.Card{testCard(t)}}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/cards?delivered=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.deliv)
	assert.True(t, *svc.deliv)

	var got []CardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "casa", got[0].Front)
	assert.Equal(t, "pending", got[0].DeliveryState)
}

func TestGetCardNotFound(t *testing.T) {
	t.Parallel()
	svc := &fakeCardService{err: service.ErrCardNotFound}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/cards/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCardOwnershipReportedAsNotFound(t *testing.T) {
	t.Parallel()
	svc := &fakeCardService{err: service.ErrNotOwner}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/cards/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "owner")
}

func TestDeleteCardReturnsRemovedCard(t *testing.T) {
	t.Parallel()
	card := testCard(t)
	svc := &fakeCardService{card: card}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	req := httptest.NewRequest(http.MethodDelete, "/api/cards/"+card.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got CardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, card.ID.String(), got.ID)
}

func TestRetryCard(t *testing.T) {
	t.Parallel()
	svc := &fakeCardService{}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())
	cardID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/cards/"+cardID.String()+"/retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, cardID, svc.retried)
}

func TestRetryCardNotRetryable(t *testing.T) {
	t.Parallel()
	svc := &fakeCardService{err: service.ErrNotRetryable}
	router := newTestRouter(NewCardHandler(svc, nil), uuid.New())

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/cards/"+uuid.NewString()+"/retry",
		nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCardRoutesRejectMalformedID(t *testing.T) {
	t.Parallel()
	router := newTestRouter(NewCardHandler(&fakeCardService{}, nil), uuid.New())

	req := httptest.NewRequest(http.MethodDelete, "/api/cards/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
