package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCardStore is an in-memory CardStore for service tests.
type fakeCardStore struct {
	mu        sync.Mutex
	cards     map[uuid.UUID]*domain.Card
	createErr error
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: make(map[uuid.UUID]*domain.Card)}
}

func (f *fakeCardStore) Create(ctx context.Context, card *domain.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *card
	f.cards[card.ID] = &copied
	return nil
}

func (f *fakeCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	copied := *card
	return &copied, nil
}

func (f *fakeCardStore) ListByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
	delivered *bool,
) ([]*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Card
	for _, card := range f.cards {
		if card.OwnerID != ownerID {
			continue
		}
		if delivered != nil {
			isTerminal := card.DeliveryState != domain.DeliveryStatePending
			if isTerminal != *delivered {
				continue
			}
		}
		copied := *card
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeCardStore) ListPending(ctx context.Context, limit int) ([]*domain.Card, error) {
	return nil, nil
}

func (f *fakeCardStore) ListAll(ctx context.Context, limit, offset int) ([]*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Card
	for _, card := range f.cards {
		copied := *card
		out = append(out, &copied)
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

func (f *fakeCardStore) Delete(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	delete(f.cards, id)
	return card, nil
}

func (f *fakeCardStore) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return f.setState(id, domain.DeliveryStatePending, domain.DeliveryStateDelivered)
}

func (f *fakeCardStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return f.setState(id, domain.DeliveryStatePending, domain.DeliveryStateFailed)
}

func (f *fakeCardStore) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	return f.setState(id, domain.DeliveryStateFailed, domain.DeliveryStatePending)
}

func (f *fakeCardStore) setState(id uuid.UUID, from, to domain.DeliveryState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok || card.DeliveryState != from {
		return store.ErrUpdateFailed
	}
	card.DeliveryState = to
	return nil
}

func (f *fakeCardStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cards)
}

func newTestService(t *testing.T, cardStore store.CardStore) CardService {
	t.Helper()
	svc, err := NewCardService(cardStore, nil)
	require.NoError(t, err)
	return svc
}

// drain collects every event from the stream in order.
func drain(t *testing.T, events <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("timed out draining progress events")
		}
	}
}

func validInput() domain.CardInput {
	return domain.CardInput{
		Type:  "vocabulary",
		Front: "casa",
		Back:  "house",
		Tags:  []string{"spanish"},
	}
}

func TestCreateCardSuccess(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	svc := newTestService(t, cardStore)
	ownerID := uuid.New()

	events := drain(t, svc.CreateCard(context.Background(), ownerID, validInput()))

	// Three loading stages, then exactly one terminal success.
	require.Len(t, events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, ProgressStatusLoading, events[i].Status, "event %d should be loading", i)
		assert.False(t, events[i].Terminal())
	}
	assert.Contains(t, events[0].Text, "Validating")
	assert.Contains(t, events[1].Text, "vocabulary")
	assert.Contains(t, events[1].Text, "casa")
	assert.Contains(t, events[2].Text, "Saving")

	terminal := events[3]
	assert.Equal(t, ProgressStatusSuccess, terminal.Status)
	require.NotNil(t, terminal.CardID)
	require.NotNil(t, terminal.Card)
	assert.Equal(t, "casa", terminal.Card.Front)
	assert.Equal(t, "house", terminal.Card.Back)
	assert.Equal(t, []string{"spanish"}, terminal.Card.Tags)

	// Exactly one row, persisted in the pending state.
	require.Equal(t, 1, cardStore.count())
	persisted, err := cardStore.GetByID(context.Background(), *terminal.CardID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, persisted.OwnerID)
	assert.Equal(t, domain.DeliveryStatePending, persisted.DeliveryState)
}

func TestCreateCardValidationRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(in *domain.CardInput)
	}{
		{name: "missing front", mutate: func(in *domain.CardInput) { in.Front = "  " }},
		{name: "missing back", mutate: func(in *domain.CardInput) { in.Back = "" }},
		{name: "missing type", mutate: func(in *domain.CardInput) { in.Type = "" }},
		{name: "malformed metadata", mutate: func(in *domain.CardInput) { in.Metadata = domain.Metadata(`42`) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cardStore := newFakeCardStore()
			svc := newTestService(t, cardStore)

			input := validInput()
			tc.mutate(&input)

			events := drain(t, svc.CreateCard(context.Background(), uuid.New(), input))

			// One loading event, then a single terminal failure.
			require.Len(t, events, 2)
			assert.Equal(t, ProgressStatusLoading, events[0].Status)
			assert.Equal(t, ProgressStatusError, events[1].Status)
			assert.NotEmpty(t, events[1].Error)
			assert.Nil(t, events[1].CardID)

			// No side effects on rejection.
			assert.Equal(t, 0, cardStore.count())
		})
	}
}

func TestCreateCardPersistenceFailure(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	cardStore.createErr = errors.New("connection refused")
	svc := newTestService(t, cardStore)

	events := drain(t, svc.CreateCard(context.Background(), uuid.New(), validInput()))

	require.NotEmpty(t, events)
	terminal := events[len(events)-1]
	assert.Equal(t, ProgressStatusError, terminal.Status)
	assert.Contains(t, terminal.Error, "connection refused")

	// All preceding events are loading; there is exactly one terminal.
	for _, event := range events[:len(events)-1] {
		assert.Equal(t, ProgressStatusLoading, event.Status)
	}
	assert.Equal(t, 0, cardStore.count())
}

func TestCreateCardAbandonedStreamStillPersists(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	svc := newTestService(t, cardStore)

	// The caller walks away without reading a single event.
	_ = svc.CreateCard(context.Background(), uuid.New(), validInput())

	require.Eventually(t, func() bool {
		return cardStore.count() == 1
	}, 2*time.Second, 10*time.Millisecond,
		"the pipeline should finish persisting even with no consumer")
}

func TestGetCardEnforcesOwnership(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	svc := newTestService(t, cardStore)
	ownerID := uuid.New()

	events := drain(t, svc.CreateCard(context.Background(), ownerID, validInput()))
	cardID := *events[len(events)-1].CardID

	card, err := svc.GetCard(context.Background(), ownerID, cardID)
	require.NoError(t, err)
	assert.Equal(t, cardID, card.ID)

	_, err = svc.GetCard(context.Background(), uuid.New(), cardID)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.GetCard(context.Background(), ownerID, uuid.New())
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDeleteCardAnyDeliveryState(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	svc := newTestService(t, cardStore)
	ownerID := uuid.New()

	events := drain(t, svc.CreateCard(context.Background(), ownerID, validInput()))
	cardID := *events[len(events)-1].CardID
	require.NoError(t, cardStore.MarkDelivered(context.Background(), cardID))

	// Wrong owner cannot delete.
	_, err := svc.DeleteCard(context.Background(), uuid.New(), cardID)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 1, cardStore.count())

	deleted, err := svc.DeleteCard(context.Background(), ownerID, cardID)
	require.NoError(t, err)
	assert.Equal(t, cardID, deleted.ID)
	assert.Equal(t, 0, cardStore.count())
}

func TestRetryCardOnlyFromFailed(t *testing.T) {
	t.Parallel()
	cardStore := newFakeCardStore()
	svc := newTestService(t, cardStore)
	ownerID := uuid.New()

	events := drain(t, svc.CreateCard(context.Background(), ownerID, validInput()))
	cardID := *events[len(events)-1].CardID

	// Pending cards are not retryable.
	err := svc.RetryCard(context.Background(), ownerID, cardID)
	assert.ErrorIs(t, err, ErrNotRetryable)

	require.NoError(t, cardStore.MarkFailed(context.Background(), cardID))
	require.NoError(t, svc.RetryCard(context.Background(), ownerID, cardID))

	card, err := cardStore.GetByID(context.Background(), cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatePending, card.DeliveryState)
}
